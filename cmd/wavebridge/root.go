package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/petems/wavebridge/internal/app"
	"github.com/petems/wavebridge/internal/audio"
	"github.com/petems/wavebridge/internal/config"
	"github.com/petems/wavebridge/internal/hotkey"
	"github.com/petems/wavebridge/internal/logging"
	"github.com/petems/wavebridge/internal/permissions"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wavebridge",
		Short:         "Forward live audio waveform frames to a visualizer",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.Path(), "config file path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newTrayCmd(opts),
		newDevicesCmd(opts),
	)
	return cmd
}

// env bundles what every subcommand needs
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	backend audio.Backend
}

func (o *rootOptions) setup() (*env, error) {
	// Load config from XDG/Library/AppData
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Error().Err(err).Msg("Failed to load config")
		return nil, err
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	log := logging.NewWithLevel(level)

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		log.Error().Err(err).Msg("Required permissions not granted")
		return nil, err
	}

	backend, err := audio.New(cfg.Audio, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return nil, err
	}

	return &env{cfg: cfg, log: log, backend: backend}, nil
}

func (e *env) newApp(status app.StatusUpdater) *app.App {
	return app.New(app.Config{
		Audio:         e.backend,
		Config:        e.cfg,
		Logger:        e.log,
		StatusUpdater: status,
	})
}

// registerHotkey binds the configured hotkey to the visualizer toggle. A
// missing display or a bad accelerator is logged and capture carries on
// without a hotkey; the returned release func is always safe to call.
func (e *env) registerHotkey(application *app.App) func() {
	accel := e.cfg.PlatformHotkey()
	if accel == "" {
		return func() {}
	}

	hkManager, err := hotkey.New()
	if err != nil {
		e.log.Warn().Err(err).Msg("Hotkeys unavailable")
		return func() {}
	}
	if err := hkManager.Register(accel, application.OnHotkey); err != nil {
		e.log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register hotkey")
		hkManager.Close()
		return func() {}
	}
	e.log.Info().Str("hotkey", accel).Msg("Hotkey registered")

	return func() {
		if err := hkManager.Close(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to release hotkey")
		}
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
