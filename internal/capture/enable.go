package capture

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// State is the enable state of a session
type State int

const (
	Disabled State = iota
	Enabling
	Enabled
	Disabling
)

func (s State) String() string {
	switch s {
	case Enabling:
		return "enabling"
	case Enabled:
		return "enabled"
	case Disabling:
		return "disabling"
	default:
		return "disabled"
	}
}

// enabler applies enable requests to the handle on one worker goroutine.
// Wake-ups coalesce and the worker always applies the latest desired state,
// so an older request never lands after a newer one.
type enabler struct {
	handle  Handle
	log     zerolog.Logger
	want    *atomic.Bool
	applied *atomic.Bool

	wake   chan struct{}
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

func newEnabler(handle Handle, want, applied *atomic.Bool, log zerolog.Logger) *enabler {
	ctx, cancel := context.WithCancel(context.Background())
	e := &enabler{
		handle:  handle,
		log:     log,
		want:    want,
		applied: applied,
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
	}
	e.wg.Go(func() { e.run(ctx) })
	return e
}

// request never blocks
func (e *enabler) request() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *enabler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			// Handles treat a repeated state as a no-op, or as a restart
			// when their stream has failed, so it is always passed through.
			want := e.want.Load()
			if err := e.handle.SetEnabled(want); err != nil {
				e.log.Error().Err(err).Bool("enabled", want).Msg("Failed to change capture state")
				continue
			}
			e.applied.Store(want)
			e.log.Debug().Bool("enabled", want).Msg("Capture state applied")
		}
	}
}

func (e *enabler) stop() {
	e.cancel()
	e.wg.Wait()
}
