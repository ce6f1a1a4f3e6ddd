// Package capture bridges a push-based audio capture subsystem to a consumer
// that wants periodic waveform frames.
package capture

// Capabilities describes what the audio subsystem supports.
// Capture rates are expressed in millihertz, so 20000 is twenty deliveries per second.
type Capabilities struct {
	MinCaptureSize int
	MaxCaptureSize int
	MaxCaptureRate int
}

// Subsystem is the platform audio capture facility
type Subsystem interface {
	Capabilities() Capabilities
	Acquire() (Handle, error)
}

// Handle is one exclusively owned capture registration with the subsystem
type Handle interface {
	SetCaptureSize(size int) error
	CaptureSize() int
	// SetDataCaptureListener registers l to be called at rate (millihertz).
	// Subsystems that cannot separate waveform from FFT delivery may ignore the flags.
	SetDataCaptureListener(l Listener, rate int, waveform, fft bool) error
	// SetEnabled may block while the driver starts or stops capture.
	SetEnabled(enabled bool) error
	Release() error
}

// Listener receives frames on a goroutine owned by the subsystem.
// Implementations must not retain samples after returning.
type Listener interface {
	OnWaveform(samples []byte, sampleRate int)
	OnFFT(samples []byte, index int)
}

// Target identifies the external consumer of accepted frames.
// It is opaque here and only interpreted by the Forwarder.
type Target uint64

// Forwarder hands accepted frames to the consumer boundary.
// SendWaveform is a one-way notification and must not block.
type Forwarder interface {
	SendWaveform(target Target, samples []byte, sampleRate int)
}
