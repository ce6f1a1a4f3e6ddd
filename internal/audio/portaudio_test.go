package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/wavebridge/internal/capture"
	"github.com/petems/wavebridge/internal/config"
	"github.com/rs/zerolog"
)

func TestDownmixInterleavedMono(t *testing.T) {
	input := []float32{0.1, 0.2, 0.3, 0.4}
	got := downmixInterleaved(input, 1, len(input))

	if len(got) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(got))
	}
	for i := range input {
		if got[i] != input[i] {
			t.Fatalf("expected element %d to be %f, got %f", i, input[i], got[i])
		}
	}

	if &got[0] == &input[0] {
		t.Fatal("expected mono result to be copied into a new slice")
	}
}

func TestDownmixInterleavedStereo(t *testing.T) {
	frames := 4
	input := []float32{
		0.0, 1.0,
		0.5, 0.5,
		1.0, 0.0,
		-0.5, 0.5,
	}

	expected := []float32{
		0.5, 0.5, 0.5, 0.0,
	}

	got := downmixInterleaved(input, 2, frames)
	if len(got) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("frame %d mismatch: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestDownmixInterleavedMoreChannels(t *testing.T) {
	frames := 2
	input := []float32{
		1, 3, 5,
		2, 4, 6,
	}

	expected := []float32{3, 4}

	got := downmixInterleaved(input, 3, frames)
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("frame %d mismatch: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestQuantize(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, -0.5, 2, -2}
	expected := []byte{128, 255, 0, 192, 64, 255, 0}

	got := make([]byte, len(src))
	quantize(got, src)
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestSampleRingSnapshotOrder(t *testing.T) {
	ring := newSampleRing(4)
	ring.write([]float32{1, 2, 3})
	ring.write([]float32{4, 5, 6})

	expected := []float32{3, 4, 5, 6}
	got := make([]float32, 4)
	ring.snapshot(got)
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("element %d: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestCaptureInterval(t *testing.T) {
	tests := []struct {
		rate     int
		expected time.Duration
	}{
		{20000, 50 * time.Millisecond},
		{1000, time.Second},
		{500, 2 * time.Second},
		{0, time.Second},
	}

	for _, tt := range tests {
		if got := captureInterval(tt.rate); got != tt.expected {
			t.Errorf("captureInterval(%d): expected %s, got %s", tt.rate, tt.expected, got)
		}
	}
}

type nopListener struct{}

func (nopListener) OnWaveform(samples []byte, sampleRate int) {}
func (nopListener) OnFFT(samples []byte, index int)           {}

func newTestHandle() *portAudioHandle {
	backend := &portAudioBackend{
		cfg: config.AudioConfig{
			SampleRate:      44100,
			FramesPerBuffer: 256,
			MinCaptureSize:  128,
			MaxCaptureSize:  1024,
			MaxCaptureRate:  20000,
		},
		log: zerolog.Nop(),
	}
	return &portAudioHandle{backend: backend, size: 128, log: zerolog.Nop()}
}

func TestHandleCaptureSizeRange(t *testing.T) {
	h := newTestHandle()

	if err := h.SetCaptureSize(1024); err != nil {
		t.Fatalf("expected 1024 to be accepted, got %v", err)
	}
	if h.CaptureSize() != 1024 {
		t.Fatalf("expected capture size 1024, got %d", h.CaptureSize())
	}

	for _, size := range []int{64, 2048} {
		err := h.SetCaptureSize(size)
		if !errors.Is(err, capture.ErrRejected) {
			t.Fatalf("expected size %d to be rejected, got %v", size, err)
		}
	}
	if h.CaptureSize() != 1024 {
		t.Fatalf("rejected size changed capture size to %d", h.CaptureSize())
	}
}

func TestHandleListenerRate(t *testing.T) {
	h := newTestHandle()

	if err := h.SetDataCaptureListener(nopListener{}, 20000, true, false); err != nil {
		t.Fatalf("expected max rate to be accepted, got %v", err)
	}
	for _, rate := range []int{0, 20001} {
		if err := h.SetDataCaptureListener(nopListener{}, rate, true, false); !errors.Is(err, capture.ErrRejected) {
			t.Fatalf("expected rate %d to be rejected, got %v", rate, err)
		}
	}
}

func TestHandleRejectsAfterRelease(t *testing.T) {
	h := newTestHandle()

	if err := h.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	if err := h.SetCaptureSize(256); !errors.Is(err, capture.ErrRejected) {
		t.Fatalf("expected rejection after release, got %v", err)
	}
	if err := h.SetEnabled(true); !errors.Is(err, capture.ErrRejected) {
		t.Fatalf("expected rejection after release, got %v", err)
	}
}

// scriptedReader fills buf with level and returns the scripted errors in order,
// then readErr forever.
type scriptedReader struct {
	buf     []float32
	level   float32
	errs    []error
	readErr error
	reads   int
}

func (r *scriptedReader) Read() error {
	r.reads++
	for i := range r.buf {
		r.buf[i] = r.level
	}
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return err
	}
	return r.readErr
}

type countingListener struct {
	frames int
	last   []byte
}

func (l *countingListener) OnWaveform(samples []byte, sampleRate int) {
	l.frames++
	l.last = append(l.last[:0], samples...)
}
func (l *countingListener) OnFFT(samples []byte, index int) {}

func newTestLoop(reader *scriptedReader, listener capture.Listener, failed *atomic.Bool) captureLoop {
	return captureLoop{
		reader:     reader,
		buffer:     reader.buf,
		channels:   1,
		listener:   listener,
		waveform:   true,
		size:       4,
		interval:   time.Nanosecond,
		sampleRate: 44100,
		failed:     failed,
		log:        zerolog.Nop(),
		overflow:   zerolog.Nop(),
	}
}

func TestCaptureLoopSurvivesInputOverflow(t *testing.T) {
	reader := &scriptedReader{
		buf:     make([]float32, 4),
		level:   0.5,
		errs:    []error{nil, portaudio.InputOverflowed, nil, portaudio.InputOverflowed, nil},
		readErr: errors.New("device unplugged"),
	}
	listener := &countingListener{}
	var failed atomic.Bool

	newTestLoop(reader, listener, &failed).run(context.Background())

	if reader.reads != 6 {
		t.Fatalf("expected loop to keep reading through overflows, got %d reads", reader.reads)
	}
	if listener.frames == 0 {
		t.Fatal("expected frames to be delivered despite overflows")
	}
	for i, b := range listener.last {
		if b != 192 {
			t.Fatalf("sample %d: expected 192, got %d", i, b)
		}
	}
	if !failed.Load() {
		t.Fatal("expected a fatal read error to mark the stream dead")
	}
}

func TestCaptureLoopStopsOnCancel(t *testing.T) {
	reader := &scriptedReader{buf: make([]float32, 4)}
	var failed atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newTestLoop(reader, &countingListener{}, &failed).run(ctx)

	if reader.reads != 0 {
		t.Fatalf("expected no reads after cancel, got %d", reader.reads)
	}
	if failed.Load() {
		t.Fatal("cancellation must not mark the stream dead")
	}
}
