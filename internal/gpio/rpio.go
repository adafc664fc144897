//go:build linux && !tinygo

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO drives BCM283x lines through memory-mapped registers. It is the
// lowest-latency backend on a Raspberry Pi; Spec.Chip is ignored.
type RPIO struct{}

// NewRPIO maps the GPIO register block.
func NewRPIO() (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w", err)
	}
	return &RPIO{}, nil
}

// Open returns the pin as a floating input.
func (r *RPIO) Open(spec Spec) (Line, error) {
	if spec.Offset < 0 || spec.Offset > 53 {
		return nil, fmt.Errorf("open %s: pin out of range", spec)
	}
	l := &rpioLine{pin: rpio.Pin(spec.Offset), spec: spec}
	if err := l.Configure(Disconnected); err != nil {
		return nil, err
	}
	return l, nil
}

// Close unmaps the register block.
func (r *RPIO) Close() error {
	return rpio.Close()
}

type rpioLine struct {
	pin  rpio.Pin
	spec Spec
}

func (l *rpioLine) state(active bool) rpio.State {
	if active != (l.spec.Flags&ActiveLow != 0) {
		return rpio.High
	}
	return rpio.Low
}

func (l *rpioLine) Configure(m Mode) error {
	switch m {
	case Disconnected:
		l.pin.Input()
		l.pin.PullOff()
	case Input:
		l.pin.Input()
		switch {
		case l.spec.Flags&PullUp != 0:
			l.pin.PullUp()
		case l.spec.Flags&PullDown != 0:
			l.pin.PullDown()
		default:
			l.pin.PullOff()
		}
	case OutputInactive:
		l.pin.Output()
		l.pin.Write(l.state(false))
	case OutputActive:
		l.pin.Output()
		l.pin.Write(l.state(true))
	default:
		return fmt.Errorf("configure %s: unknown mode %v", l.spec, m)
	}
	return nil
}

func (l *rpioLine) Set(active bool) error {
	l.pin.Write(l.state(active))
	return nil
}

func (l *rpioLine) Get() (bool, error) {
	return l.pin.Read() == l.state(true), nil
}

func (l *rpioLine) Close() error {
	l.pin.Input()
	l.pin.PullOff()
	return nil
}
