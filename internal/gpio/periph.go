//go:build !tinygo

package gpio

import (
	"fmt"
	"strconv"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph opens lines through the periph.io host drivers. Lines are looked up
// by their number in the global pin registry; Spec.Chip is ignored.
type Periph struct{}

// NewPeriph initializes the periph.io host drivers.
func NewPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return &Periph{}, nil
}

// Open looks up the pin and leaves it floating.
func (p *Periph) Open(spec Spec) (Line, error) {
	pin := gpioreg.ByName(strconv.Itoa(spec.Offset))
	if pin == nil {
		return nil, fmt.Errorf("open %s: no such pin", spec)
	}
	l := &periphLine{pin: pin, spec: spec}
	if err := l.Configure(Disconnected); err != nil {
		return nil, err
	}
	return l, nil
}

// Close is a no-op; periph keeps host drivers loaded for the process lifetime.
func (p *Periph) Close() error {
	return nil
}

type periphLine struct {
	pin  pgpio.PinIO
	spec Spec
}

func (l *periphLine) level(active bool) pgpio.Level {
	return pgpio.Level(active != (l.spec.Flags&ActiveLow != 0))
}

func (l *periphLine) Configure(m Mode) error {
	var err error
	switch m {
	case Disconnected:
		err = l.pin.In(pgpio.Float, pgpio.NoEdge)
	case Input:
		pull := pgpio.Float
		switch {
		case l.spec.Flags&PullUp != 0:
			pull = pgpio.PullUp
		case l.spec.Flags&PullDown != 0:
			pull = pgpio.PullDown
		}
		err = l.pin.In(pull, pgpio.NoEdge)
	case OutputInactive:
		err = l.pin.Out(l.level(false))
	case OutputActive:
		err = l.pin.Out(l.level(true))
	default:
		return fmt.Errorf("configure %s: unknown mode %v", l.spec, m)
	}
	if err != nil {
		return fmt.Errorf("configure %s as %s: %w", l.spec, m, err)
	}
	return nil
}

func (l *periphLine) Set(active bool) error {
	if err := l.pin.Out(l.level(active)); err != nil {
		return fmt.Errorf("set %s: %w", l.spec, err)
	}
	return nil
}

func (l *periphLine) Get() (bool, error) {
	return l.pin.Read() == l.level(true), nil
}

func (l *periphLine) Close() error {
	if err := l.pin.In(pgpio.Float, pgpio.NoEdge); err != nil {
		return fmt.Errorf("release %s: %w", l.spec, err)
	}
	return l.pin.Halt()
}
