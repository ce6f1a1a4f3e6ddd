package capture

import "sync/atomic"

// dispatcher is the Listener registered with the subsystem. It reads the
// session's state cells but does not own them.
type dispatcher struct {
	target  Target
	fwd     Forwarder
	enabled *atomic.Bool
	live    *atomic.Bool
	stats   *counters
}

type counters struct {
	delivered atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

func (d *dispatcher) OnWaveform(samples []byte, sampleRate int) {
	d.stats.delivered.Add(1)
	if !d.live.Load() || !d.enabled.Load() {
		d.stats.dropped.Add(1)
		return
	}
	d.fwd.SendWaveform(d.target, samples, sampleRate)
	d.stats.forwarded.Add(1)
}

// OnFFT discards spectral frames; only waveform capture is requested.
func (d *dispatcher) OnFFT(samples []byte, index int) {}
