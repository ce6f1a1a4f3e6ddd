// Package boundary is the consumer side of the waveform bridge. It issues
// opaque targets to consumers and delivers accepted frames to them without
// ever blocking the audio delivery goroutine.
package boundary

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/petems/wavebridge/internal/capture"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Frame is a copy of an accepted waveform frame
type Frame struct {
	Samples    []byte
	SampleRate int
	Captured   time.Time
}

type consumer struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan Frame
	dropped atomic.Uint64
}

// Registry maps targets to consumers and implements capture.Forwarder
type Registry struct {
	consumers *xsync.MapOf[capture.Target, *consumer]
	next      atomic.Uint64
	log       zerolog.Logger
	sampled   zerolog.Logger
}

// NewRegistry creates an empty consumer registry
func NewRegistry(log zerolog.Logger) *Registry {
	log = log.With().Str("component", "boundary").Logger()
	return &Registry{
		consumers: xsync.NewMapOf[capture.Target, *consumer](),
		log:       log,
		sampled:   log.Sample(&zerolog.BasicSampler{N: 100}),
	}
}

// Register adds a consumer with a bounded frame buffer and returns its target
func (r *Registry) Register(buffer int) (capture.Target, <-chan Frame) {
	if buffer < 1 {
		buffer = 1
	}
	target := capture.Target(r.next.Add(1))
	c := &consumer{ch: make(chan Frame, buffer)}
	r.consumers.Store(target, c)
	r.log.Debug().Uint64("target", uint64(target)).Int("buffer", buffer).Msg("Consumer registered")
	return target, c.ch
}

// Unregister removes a consumer and closes its channel
func (r *Registry) Unregister(target capture.Target) {
	c, ok := r.consumers.LoadAndDelete(target)
	if !ok {
		return
	}
	c.mu.Lock()
	c.closed = true
	close(c.ch)
	c.mu.Unlock()
	r.log.Debug().
		Uint64("target", uint64(target)).
		Uint64("dropped", c.dropped.Load()).
		Msg("Consumer unregistered")
}

// SendWaveform copies samples to the consumer behind target. Unknown targets
// and full buffers drop the frame.
func (r *Registry) SendWaveform(target capture.Target, samples []byte, sampleRate int) {
	c, ok := r.consumers.Load(target)
	if !ok {
		r.sampled.Warn().Uint64("target", uint64(target)).Msg("Frame for unknown consumer dropped")
		return
	}

	frame := Frame{
		Samples:    append([]byte(nil), samples...),
		SampleRate: sampleRate,
		Captured:   time.Now(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- frame:
	default:
		// Drop if consumer is behind
		c.dropped.Add(1)
		r.sampled.Debug().Uint64("target", uint64(target)).Msg("Consumer buffer full, frame dropped")
	}
}

// Dropped reports how many frames a consumer lost to a full buffer
func (r *Registry) Dropped(target capture.Target) uint64 {
	c, ok := r.consumers.Load(target)
	if !ok {
		return 0
	}
	return c.dropped.Load()
}

// Len returns the number of registered consumers
func (r *Registry) Len() int {
	return r.consumers.Size()
}
