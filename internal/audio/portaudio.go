package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/wavebridge/internal/capture"
	"github.com/petems/wavebridge/internal/config"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

type portAudioBackend struct {
	cfg config.AudioConfig
	log zerolog.Logger

	mu       sync.Mutex
	deviceID string
}

// New creates a new PortAudio-based capture subsystem
func New(cfg config.AudioConfig, log zerolog.Logger) (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{
		cfg:      cfg,
		log:      log.With().Str("component", "portaudio").Logger(),
		deviceID: cfg.DeviceID,
	}, nil
}

func (p *portAudioBackend) Capabilities() capture.Capabilities {
	return capture.Capabilities{
		MinCaptureSize: p.cfg.MinCaptureSize,
		MaxCaptureSize: p.cfg.MaxCaptureSize,
		MaxCaptureRate: p.cfg.MaxCaptureRate,
	}
}

func (p *portAudioBackend) SelectDevice(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deviceID = id
}

func (p *portAudioBackend) Acquire() (capture.Handle, error) {
	p.mu.Lock()
	deviceID := p.deviceID
	p.mu.Unlock()

	device, err := findDevice(deviceID)
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("device", device.Name).Msg("Acquired input device")
	return &portAudioHandle{
		backend: p,
		device:  device,
		size:    p.cfg.MinCaptureSize,
		log:     p.log,
	}, nil
}

func findDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", deviceID)
}

func (p *portAudioBackend) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

type portAudioHandle struct {
	backend *portAudioBackend
	device  *portaudio.DeviceInfo
	log     zerolog.Logger

	mu       sync.Mutex
	size     int
	listener capture.Listener
	rate     int
	waveform bool
	stream   *portaudio.Stream
	cancel   context.CancelFunc
	wg       conc.WaitGroup
	released bool
	// failed is set by the capture loop when the stream can no longer be read
	failed atomic.Bool
}

func (h *portAudioHandle) SetCaptureSize(size int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	caps := h.backend.Capabilities()
	switch {
	case h.released:
		return fmt.Errorf("%w: handle released", capture.ErrRejected)
	case h.stream != nil:
		return fmt.Errorf("%w: capture size cannot change while capturing", capture.ErrRejected)
	case size < caps.MinCaptureSize || size > caps.MaxCaptureSize:
		return fmt.Errorf("%w: capture size %d outside [%d, %d]", capture.ErrRejected, size, caps.MinCaptureSize, caps.MaxCaptureSize)
	}
	h.size = size
	return nil
}

func (h *portAudioHandle) CaptureSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// SetDataCaptureListener registers l. PortAudio has no FFT delivery, so the fft flag is ignored.
func (h *portAudioHandle) SetDataCaptureListener(l capture.Listener, rate int, waveform, fft bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.released:
		return fmt.Errorf("%w: handle released", capture.ErrRejected)
	case h.stream != nil:
		return fmt.Errorf("%w: listener cannot change while capturing", capture.ErrRejected)
	case rate <= 0 || rate > h.backend.cfg.MaxCaptureRate:
		return fmt.Errorf("%w: capture rate %d outside (0, %d]", capture.ErrRejected, rate, h.backend.cfg.MaxCaptureRate)
	}
	if fft {
		h.log.Debug().Msg("FFT capture requested but not supported, ignoring")
	}
	h.listener = l
	h.rate = rate
	h.waveform = waveform
	return nil
}

func (h *portAudioHandle) SetEnabled(enabled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return fmt.Errorf("%w: handle released", capture.ErrRejected)
	}
	if enabled {
		return h.startLocked()
	}
	return h.stopLocked()
}

func (h *portAudioHandle) startLocked() error {
	if h.stream != nil {
		if !h.failed.Load() {
			return nil
		}
		h.log.Warn().Str("device", h.device.Name).Msg("Reopening failed audio stream")
		if err := h.stopLocked(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to tear down dead audio stream")
		}
	}
	h.failed.Store(false)

	cfg := h.backend.cfg
	channels := h.device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}

	// Open stream: up to stereo, downmixed to mono in the read loop
	buffer := make([]float32, cfg.FramesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   h.device,
			Channels: channels,
			Latency:  h.device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.stream = stream
	h.cancel = cancel

	loop := captureLoop{
		reader:     stream,
		buffer:     buffer,
		channels:   channels,
		listener:   h.listener,
		waveform:   h.waveform,
		size:       h.size,
		interval:   captureInterval(h.rate),
		sampleRate: cfg.SampleRate,
		failed:     &h.failed,
		log:        h.log,
		overflow:   h.log.Sample(&zerolog.BasicSampler{N: 100}),
	}
	h.wg.Go(func() { loop.run(ctx) })

	h.log.Info().
		Str("device", h.device.Name).
		Int("channels", channels).
		Int("capture_size", h.size).
		Dur("interval", loop.interval).
		Msg("Audio capture started")
	return nil
}

func (h *portAudioHandle) stopLocked() error {
	if h.stream == nil {
		return nil
	}

	h.cancel()
	h.wg.Wait()

	stream := h.stream
	h.stream = nil
	h.cancel = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	h.log.Info().Msg("Audio capture stopped")
	return nil
}

func (h *portAudioHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	err := h.stopLocked()
	h.listener = nil
	h.released = true
	return err
}

// streamReader fills the loop's buffer with the next block of input
type streamReader interface {
	Read() error
}

// captureLoop reads the stream and pushes the latest capture-size window to
// the listener once per interval.
type captureLoop struct {
	reader     streamReader
	buffer     []float32
	channels   int
	listener   capture.Listener
	waveform   bool
	size       int
	interval   time.Duration
	sampleRate int
	failed     *atomic.Bool
	log        zerolog.Logger
	overflow   zerolog.Logger
}

func (c captureLoop) run(ctx context.Context) {
	ring := newSampleRing(c.size)
	window := make([]float32, c.size)
	frame := make([]byte, c.size)
	frames := len(c.buffer) / c.channels
	next := time.Now().Add(c.interval)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.reader.Read(); err != nil {
			// An overflow still fills the buffer, only older input was lost
			if !errors.Is(err, portaudio.InputOverflowed) {
				c.log.Error().Err(err).Msg("Audio read failed, stream marked dead")
				c.failed.Store(true)
				return
			}
			c.overflow.Warn().Err(err).Msg("Audio input overflowed")
		}
		ring.write(downmixInterleaved(c.buffer, c.channels, frames))

		now := time.Now()
		if now.Before(next) {
			continue
		}
		next = next.Add(c.interval)
		if next.Before(now) {
			next = now.Add(c.interval)
		}

		if !c.waveform || c.listener == nil {
			continue
		}
		ring.snapshot(window)
		quantize(frame, window)
		c.listener.OnWaveform(frame, c.sampleRate)
	}
}

// captureInterval converts a capture rate in millihertz to a delivery period
func captureInterval(rate int) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	return time.Duration(int64(time.Second) * 1000 / int64(rate))
}

// downmixInterleaved averages interleaved channels into a new mono slice
func downmixInterleaved(in []float32, channels, frames int) []float32 {
	out := make([]float32, frames)
	if channels <= 1 {
		copy(out, in[:frames])
		return out
	}
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += in[f*channels+c]
		}
		out[f] = sum / float32(channels)
	}
	return out
}

// quantize converts [-1, 1] float samples to unsigned 8-bit, 128 being silence
func quantize(dst []byte, src []float32) {
	for i, s := range src {
		v := int(math.Round(float64(s)*128)) + 128
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		dst[i] = byte(v)
	}
}

type sampleRing struct {
	buf []float32
	pos int
}

func newSampleRing(size int) *sampleRing {
	return &sampleRing{buf: make([]float32, size)}
}

func (r *sampleRing) write(samples []float32) {
	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos = (r.pos + 1) % len(r.buf)
	}
}

// snapshot copies the ring into dst oldest first
func (r *sampleRing) snapshot(dst []float32) {
	n := copy(dst, r.buf[r.pos:])
	copy(dst[n:], r.buf[:r.pos])
}
