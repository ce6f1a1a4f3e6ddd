package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/petems/wavebridge/internal/analyzer"
	"github.com/petems/wavebridge/internal/audio"
	"github.com/petems/wavebridge/internal/boundary"
	"github.com/petems/wavebridge/internal/capture"
	"github.com/petems/wavebridge/internal/config"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetCapturing()
	SetDegraded()
	SetError()
}

// Config holds the dependencies of an App
type Config struct {
	Audio         audio.Backend
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

// App owns one capture session and the consumer that feeds the analyzer
type App struct {
	audio    audio.Backend
	cfg      *config.Config
	log      zerolog.Logger
	status   StatusUpdater
	registry *boundary.Registry
	analyzer *analyzer.Analyzer

	mu      sync.Mutex
	session *capture.Session
	target  capture.Target
	pump    conc.WaitGroup
}

// New creates an App. Capture does not open until Start.
func New(cfg Config) *App {
	return &App{
		audio:    cfg.Audio,
		cfg:      cfg.Config,
		log:      cfg.Logger,
		status:   cfg.StatusUpdater,
		registry: boundary.NewRegistry(cfg.Logger),
		analyzer: analyzer.New(cfg.Config.Analyzer.Window),
	}
}

// SetStatusUpdater sets the status updater (for circular dependency resolution)
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// Start opens the capture session. A session that could not be fully
// configured still starts; it is reported as degraded.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return fmt.Errorf("capture already running")
	}
	a.startLocked()
	return nil
}

func (a *App) startLocked() {
	target, frames := a.registry.Register(a.cfg.ConsumerBuffer)
	a.target = target
	a.analyzer.Reset()
	a.pump.Go(func() {
		for frame := range frames {
			a.analyzer.Write(frame.Samples, frame.SampleRate)
		}
	})

	a.session = capture.Open(capture.Options{
		Subsystem:  a.audio,
		Forwarder:  a.registry,
		Target:     target,
		SampleRate: a.cfg.Capture.SampleRate,
		Logger:     a.log,
	})

	if a.cfg.Capture.StartEnabled {
		a.session.SetEnabled(true)
	}
	a.reportLocked()
}

func (a *App) stopLocked() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.registry.Unregister(a.target)
	a.pump.Wait()
	a.session = nil
	return err
}

func (a *App) reportLocked() {
	if a.status == nil {
		return
	}
	switch {
	case a.session == nil:
		a.status.SetIdle()
	case !a.session.Registered():
		a.status.SetError()
	case len(a.session.Errors()) > 0:
		a.status.SetDegraded()
	case a.session.IsEnabled():
		a.status.SetCapturing()
	default:
		a.status.SetIdle()
	}
}

// SetEnabled toggles frame delivery without waiting for the audio subsystem
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setEnabledLocked(enabled)
}

func (a *App) setEnabledLocked(enabled bool) {
	if a.session == nil {
		return
	}
	a.log.Info().Bool("enabled", enabled).Msg("Visualizer toggled")
	a.session.SetEnabled(enabled)
	a.reportLocked()
}

// Toggle flips the enabled state and returns the new value
func (a *App) Toggle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return false
	}
	enabled := !a.session.IsEnabled()
	a.setEnabledLocked(enabled)
	return enabled
}

// OnHotkey toggles the visualizer on key press
func (a *App) OnHotkey(pressed bool) {
	if !pressed {
		return
	}
	enabled := a.Toggle()
	a.log.Debug().Bool("enabled", enabled).Msg("Hotkey toggled visualizer")
}

func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && a.session.IsEnabled()
}

// State returns the session enable state, Disabled when not running
func (a *App) State() capture.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return capture.Disabled
	}
	return a.session.State()
}

// Stats returns the session frame counters
func (a *App) Stats() capture.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return capture.Stats{}
	}
	return a.session.Stats()
}

// Levels returns the analyzer's amplitude buckets
func (a *App) Levels() []float64 {
	return a.analyzer.Amplitudes(a.cfg.Analyzer.Buckets)
}

// Spectrum returns the analyzer's frequency bands in dB
func (a *App) Spectrum() []float64 {
	return a.analyzer.Spectrum(a.cfg.Analyzer.SpectrumWidth)
}

// SetDevice switches the input device, restarting capture when running
func (a *App) SetDevice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.Audio.DeviceID == id {
		return nil
	}
	a.cfg.Audio.DeviceID = id
	a.audio.SelectDevice(id)
	if err := a.cfg.Save(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to save config")
	}

	if a.session == nil {
		return nil
	}
	enabled := a.session.IsEnabled()
	if err := a.stopLocked(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to stop capture")
	}
	a.startLocked()
	a.session.SetEnabled(enabled)
	a.reportLocked()
	return nil
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.audio.ListDevices()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.stopLocked()
	a.reportLocked()
	return err
}
