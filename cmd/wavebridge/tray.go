package main

import (
	"context"

	"github.com/petems/wavebridge/internal/tray"
	"github.com/spf13/cobra"
)

func newTrayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run with a system tray toggle and level meter",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup()
			if err != nil {
				return err
			}
			defer e.backend.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			// Create tray UI first (we'll pass it to app)
			trayUI := tray.New(nil, e.cfg, e.log, Version, Commit)
			application := e.newApp(trayUI)
			trayUI.SetApp(application)

			// Register global hotkey
			defer e.registerHotkey(application)()

			e.log.Info().Msg("WaveBridge tray starting...")

			// Start tray UI - MUST run on main thread
			if err := trayUI.Run(ctx); err != nil {
				e.log.Error().Err(err).Msg("Tray error")
				return err
			}

			e.log.Info().Msg("Shutting down...")
			return application.Shutdown(context.Background())
		},
	}
}
