package audio

import "github.com/petems/wavebridge/internal/capture"

// Backend is an audio capture subsystem that can also enumerate input devices
type Backend interface {
	capture.Subsystem
	ListDevices() ([]AudioDevice, error)
	// SelectDevice sets the device used by the next Acquire; empty means the default input
	SelectDevice(id string)
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}
