//go:build !darwin && !linux

package hotkey

// New reports ErrUnsupported
func New() (Manager, error) {
	return nil, ErrUnsupported
}
