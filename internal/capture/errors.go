package capture

import (
	"errors"
	"fmt"
)

// ErrRejected is returned by subsystems that refuse a requested setting
var ErrRejected = errors.New("rejected by audio subsystem")

// ConfigError is a non-fatal capture configuration failure.
// The session keeps running in a degraded mode when one occurs.
type ConfigError struct {
	Op    string
	Value int
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("capture %s (%d): %v", e.Op, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
