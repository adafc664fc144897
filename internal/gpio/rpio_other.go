//go:build !linux && !tinygo

package gpio

// RPIO is not available on non-Linux platforms.
type RPIO struct{}

// NewRPIO returns ErrUnsupported on non-Linux platforms.
func NewRPIO() (*RPIO, error) {
	return nil, ErrUnsupported
}

// Open is not implemented on non-Linux platforms.
func (r *RPIO) Open(spec Spec) (Line, error) {
	return nil, ErrUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RPIO) Close() error {
	return nil
}
