//go:build !tinygo

package gpio

import "fmt"

// Backend names accepted by OpenBackend.
const (
	BackendChardev = "chardev"
	BackendPeriph  = "periph"
	BackendRPIO    = "rpio"
	BackendFake    = "fake"
)

// Backends lists every backend name in preference order.
var Backends = []string{BackendChardev, BackendPeriph, BackendRPIO, BackendFake}

// OpenBackend returns the named backend.
func OpenBackend(name string) (Opener, error) {
	var (
		o   Opener
		err error
	)
	switch name {
	case BackendChardev:
		var c *Chardev
		c, err = NewChardev()
		o = c
	case BackendPeriph:
		var p *Periph
		p, err = NewPeriph()
		o = p
	case BackendRPIO:
		var r *RPIO
		r, err = NewRPIO()
		o = r
	case BackendFake:
		o = NewFake()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	return o, nil
}
