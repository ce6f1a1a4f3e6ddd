package boundary

import (
	"sync"
	"testing"

	"github.com/petems/wavebridge/internal/capture"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ capture.Forwarder = (*Registry)(nil)

func TestRegisterIssuesDistinctTargets(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	a, _ := r.Register(1)
	b, _ := r.Register(1)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestSendWaveformCopiesSamples(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	target, frames := r.Register(4)

	samples := []byte{10, 20, 30}
	r.SendWaveform(target, samples, 44100)
	samples[0] = 99

	frame := <-frames
	assert.Equal(t, []byte{10, 20, 30}, frame.Samples)
	assert.Equal(t, 44100, frame.SampleRate)
	assert.False(t, frame.Captured.IsZero())
}

func TestSendWaveformDropsWhenFull(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	target, frames := r.Register(2)

	for i := 0; i < 5; i++ {
		r.SendWaveform(target, []byte{byte(i)}, 8000)
	}

	assert.Len(t, frames, 2)
	assert.Equal(t, uint64(3), r.Dropped(target))
	assert.Equal(t, []byte{0}, (<-frames).Samples)
	assert.Equal(t, []byte{1}, (<-frames).Samples)
}

func TestSendWaveformUnknownTarget(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	_, frames := r.Register(1)

	r.SendWaveform(capture.Target(12345), []byte{1}, 8000)
	assert.Len(t, frames, 0)
	assert.Equal(t, uint64(0), r.Dropped(capture.Target(12345)))
}

func TestUnregisterClosesChannel(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	target, frames := r.Register(1)

	r.Unregister(target)
	r.Unregister(target)

	_, ok := <-frames
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Sending after unregister must not panic
	r.SendWaveform(target, []byte{1}, 8000)
}

func TestConcurrentSendAndUnregister(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	target, frames := r.Register(8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.SendWaveform(target, []byte{byte(i)}, 8000)
		}
	}()
	go func() {
		for range frames {
		}
	}()

	r.Unregister(target)
	wg.Wait()
	require.Equal(t, 0, r.Len())
}
