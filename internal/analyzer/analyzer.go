// Package analyzer keeps a sliding window of waveform samples and derives
// amplitude buckets and a frequency spectrum from it for visualization.
package analyzer

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Floor is the spectrum value reported for silent or empty bands, in dB
const Floor = -160.0

// Analyzer is safe for concurrent use
type Analyzer struct {
	mu         sync.Mutex
	ring       []float64
	pos        int
	filled     int
	sampleRate int
}

// New creates an analyzer that keeps the last window samples
func New(window int) *Analyzer {
	if window < 2 {
		window = 2
	}
	return &Analyzer{ring: make([]float64, window)}
}

// Write appends unsigned 8-bit waveform samples, 128 being silence
func (a *Analyzer) Write(samples []byte, sampleRate int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sampleRate = sampleRate
	for _, s := range samples {
		a.ring[a.pos] = (float64(s) - 128) / 128
		a.pos = (a.pos + 1) % len(a.ring)
		if a.filled < len(a.ring) {
			a.filled++
		}
	}
}

// SampleRate returns the rate of the most recent write
func (a *Analyzer) SampleRate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sampleRate
}

// Reset discards buffered samples
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos, a.filled = 0, 0
}

// recent returns the last n buffered samples in chronological order
func (a *Analyzer) recent(n int) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n > a.filled {
		n = a.filled
	}
	out := make([]float64, n)
	size := len(a.ring)
	start := (a.pos - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = a.ring[(start+i)%size]
	}
	return out
}

// Amplitudes splits the window into buckets and returns the mean absolute
// level of each, in [0, 1]. Leftover samples go to the first buckets.
// All zeros are returned when nothing has been written.
func (a *Analyzer) Amplitudes(buckets int) []float64 {
	if buckets <= 0 {
		return nil
	}
	out := make([]float64, buckets)
	samples := a.recent(len(a.ring))
	if len(samples) == 0 {
		return out
	}

	per, excess := len(samples)/buckets, len(samples)%buckets
	idx := 0
	for b := range out {
		n := per
		if excess > 0 {
			n++
			excess--
		}
		if n == 0 {
			continue
		}
		var sum float64
		for _, s := range samples[idx : idx+n] {
			sum += math.Abs(s)
		}
		out[b] = sum / float64(n)
		idx += n
	}
	return out
}

// Spectrum returns width bands of Hann-windowed FFT magnitude in dB, starting
// at the first non-DC bin. The FFT size is the largest power of two that fits
// the buffered samples. All zeros are returned when there is not enough data
// for a transform; a band with no bins of its own reads Floor.
func (a *Analyzer) Spectrum(width int) []float64 {
	if width <= 0 {
		return nil
	}
	out := make([]float64, width)

	samples := a.recent(len(a.ring))
	n := floorPow2(len(samples))
	if n < 2 {
		return out
	}
	seq := samples[len(samples)-n:]
	for i := range seq {
		seq[i] *= hann(i, n)
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)

	per, excess := n/(2*width), n%(2*width)
	bin := 1
	for band := range out {
		count := per
		if excess > 0 {
			count++
			excess--
		}
		if count == 0 || bin+count > len(coeffs) {
			out[band] = Floor
			continue
		}
		var sum float64
		for _, c := range coeffs[bin : bin+count] {
			sum += decibels(c, n)
		}
		out[band] = sum / float64(count)
		bin += count
	}
	return out
}

func hann(i, n int) float64 {
	return 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
}

func decibels(c complex128, n int) float64 {
	re := real(c) * 2 / float64(n)
	im := imag(c) * 2 / float64(n)
	power := re*re + im*im
	if power == 0 {
		return Floor
	}
	return math.Max(10*math.Log10(power), Floor)
}

func floorPow2(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
