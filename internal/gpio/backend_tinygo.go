//go:build tinygo

package gpio

import "fmt"

// Backend names accepted by OpenBackend.
const (
	BackendMachine = "machine"
	BackendFake    = "fake"
)

// Backends lists every backend name in preference order.
var Backends = []string{BackendMachine, BackendFake}

// OpenBackend returns the named backend.
func OpenBackend(name string) (Opener, error) {
	switch name {
	case BackendMachine:
		return NewMachine(), nil
	case BackendFake:
		return NewFake(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}
