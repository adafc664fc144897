//go:build !linux && !tinygo

package gpio

// Chardev is not available on non-Linux platforms.
type Chardev struct{}

// NewChardev returns ErrUnsupported on non-Linux platforms.
func NewChardev() (*Chardev, error) {
	return nil, ErrUnsupported
}

// Open is not implemented on non-Linux platforms.
func (c *Chardev) Open(spec Spec) (Line, error) {
	return nil, ErrUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chardev) Close() error {
	return nil
}
