//go:build tinygo

package gpio

import (
	"fmt"
	"machine"
)

// Machine drives microcontroller pins through TinyGo's machine package.
// Spec.Offset is the machine.Pin number; Spec.Chip is ignored.
type Machine struct{}

// NewMachine returns the microcontroller backend.
func NewMachine() *Machine {
	return &Machine{}
}

// Open returns the pin as a floating input.
func (m *Machine) Open(spec Spec) (Line, error) {
	l := &machineLine{pin: machine.Pin(spec.Offset), spec: spec}
	if err := l.Configure(Disconnected); err != nil {
		return nil, err
	}
	return l, nil
}

// Close is a no-op.
func (m *Machine) Close() error {
	return nil
}

type machineLine struct {
	pin  machine.Pin
	spec Spec
}

func (l *machineLine) level(active bool) bool {
	return active != (l.spec.Flags&ActiveLow != 0)
}

func (l *machineLine) Configure(m Mode) error {
	switch m {
	case Disconnected:
		l.pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	case Input:
		mode := machine.PinInput
		switch {
		case l.spec.Flags&PullUp != 0:
			mode = machine.PinInputPullup
		case l.spec.Flags&PullDown != 0:
			mode = machine.PinInputPulldown
		}
		l.pin.Configure(machine.PinConfig{Mode: mode})
	case OutputInactive, OutputActive:
		l.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		l.pin.Set(l.level(m == OutputActive))
	default:
		return fmt.Errorf("configure %s: unknown mode %v", l.spec, m)
	}
	return nil
}

func (l *machineLine) Set(active bool) error {
	l.pin.Set(l.level(active))
	return nil
}

func (l *machineLine) Get() (bool, error) {
	return l.pin.Get() == l.level(true), nil
}

func (l *machineLine) Close() error {
	l.pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	return nil
}
