package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Options configures a capture session
type Options struct {
	Subsystem  Subsystem
	Forwarder  Forwarder
	Target     Target
	SampleRate int // nominal, used for diagnostics
	Logger     zerolog.Logger
}

// Stats counts waveform frames seen by a session
type Stats struct {
	Delivered uint64
	Forwarded uint64
	Dropped   uint64
}

// Session owns one live registration with the audio subsystem.
// A session is always returned, even when parts of the setup were rejected;
// see Errors.
type Session struct {
	cfg    Config
	size   int
	target Target
	log    zerolog.Logger

	handle  Handle
	enabler *enabler

	enabled atomic.Bool
	applied atomic.Bool
	live    atomic.Bool
	stats   counters

	errs []error

	closeOnce sync.Once
}

// Open acquires a capture handle, negotiates capture parameters and registers
// the waveform listener. Configuration failures are logged and recorded but
// never abort construction.
func Open(opts Options) *Session {
	s := &Session{
		target: opts.Target,
		log:    opts.Logger.With().Str("component", "capture").Uint64("target", uint64(opts.Target)).Logger(),
	}

	handle, err := opts.Subsystem.Acquire()
	if err != nil {
		s.fail(&ConfigError{Op: "acquire", Err: err})
		return s
	}
	s.handle = handle

	s.cfg = Negotiate(opts.Subsystem)
	s.size = s.cfg.CaptureSize
	s.log.Debug().
		Int("capture_size", s.cfg.CaptureSize).
		Int("capture_rate_mhz", s.cfg.CaptureRate).
		Msg("Negotiated capture parameters")

	if err := handle.SetCaptureSize(s.cfg.CaptureSize); err != nil {
		s.fail(&ConfigError{Op: "set capture size", Value: s.cfg.CaptureSize, Err: err})
		s.size = handle.CaptureSize()
	}

	d := &dispatcher{
		target:  opts.Target,
		fwd:     opts.Forwarder,
		enabled: &s.enabled,
		live:    &s.live,
		stats:   &s.stats,
	}
	if err := handle.SetDataCaptureListener(d, s.cfg.CaptureRate, true, false); err != nil {
		s.fail(&ConfigError{Op: "register listener", Value: opts.SampleRate, Err: err})
	} else {
		s.live.Store(true)
	}

	s.enabler = newEnabler(handle, &s.enabled, &s.applied, s.log)

	s.log.Info().
		Int("capture_size", s.size).
		Int("capture_rate_mhz", s.cfg.CaptureRate).
		Int("sample_rate", opts.SampleRate).
		Bool("registered", s.live.Load()).
		Msg("Capture session opened")

	return s
}

func (s *Session) fail(err *ConfigError) {
	s.errs = append(s.errs, err)
	s.log.Error().Err(err).Msg("Capture configuration error")
}

// SetEnabled updates the local delivery filter immediately and asks the
// subsystem to start or stop capture in the background. It never waits for
// the subsystem.
func (s *Session) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	if s.enabler != nil {
		s.enabler.request()
	}
}

// IsEnabled reports the local delivery filter
func (s *Session) IsEnabled() bool {
	return s.enabled.Load()
}

// State combines the local flag with the last state the subsystem accepted
func (s *Session) State() State {
	want, applied := s.enabled.Load(), s.applied.Load()
	switch {
	case want && applied:
		return Enabled
	case want:
		return Enabling
	case applied:
		return Disabling
	default:
		return Disabled
	}
}

// Config returns the negotiated capture parameters
func (s *Session) Config() Config {
	return s.cfg
}

// EffectiveCaptureSize is the size the subsystem actually uses. It differs
// from Config().CaptureSize when the negotiated size was rejected.
func (s *Session) EffectiveCaptureSize() int {
	return s.size
}

// Registered reports whether the listener registration was accepted
func (s *Session) Registered() bool {
	return s.live.Load()
}

// Errors returns the configuration errors recorded while opening
func (s *Session) Errors() []error {
	return append([]error(nil), s.errs...)
}

// Stats returns a snapshot of the frame counters
func (s *Session) Stats() Stats {
	return Stats{
		Delivered: s.stats.delivered.Load(),
		Forwarded: s.stats.forwarded.Load(),
		Dropped:   s.stats.dropped.Load(),
	}
}

// Close stops the enable worker and releases the capture handle.
// Frames delivered after Close are dropped.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.live.Store(false)
		s.enabled.Store(false)
		if s.enabler != nil {
			s.enabler.stop()
		}
		if s.handle != nil {
			if rerr := s.handle.Release(); rerr != nil {
				err = fmt.Errorf("failed to release capture handle: %w", rerr)
			}
		}
		s.log.Info().Msg("Capture session closed")
	})
	return err
}
