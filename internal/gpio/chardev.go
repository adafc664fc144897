//go:build linux && !tinygo

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Chardev opens lines through the Linux GPIO character device.
type Chardev struct {
	mu    sync.Mutex
	chips map[string]*gpiocdev.Chip
}

// NewChardev creates a character device backend. Chips are opened lazily.
func NewChardev() (*Chardev, error) {
	return &Chardev{chips: make(map[string]*gpiocdev.Chip)}, nil
}

func (c *Chardev) chip(name string) (*gpiocdev.Chip, error) {
	if name == "" {
		name = DefaultChip
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.chips[name]; ok {
		return ch, nil
	}
	ch, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	c.chips[name] = ch
	return ch, nil
}

// Open requests the line as an unbiased input. Callers configure it afterwards.
func (c *Chardev) Open(spec Spec) (Line, error) {
	return c.request(spec, nil)
}

// OpenEdge requests the line as a biased input reporting both edges.
func (c *Chardev) OpenEdge(spec Spec, handler func(active bool)) (Line, error) {
	return c.request(spec, handler)
}

func (c *Chardev) request(spec Spec, handler func(bool)) (Line, error) {
	ch, err := c.chip(spec.Chip)
	if err != nil {
		return nil, err
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, polarity(spec.Flags)}
	if handler != nil {
		opts = append(opts, bias(spec.Flags), gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				handler(evt.Type == gpiocdev.LineEventRisingEdge)
			}))
	} else {
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}

	l, err := ch.RequestLine(spec.Offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", spec, err)
	}
	return &cdevLine{line: l, spec: spec}, nil
}

// Close releases every opened chip.
func (c *Chardev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for name, ch := range c.chips {
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip %s: %w", name, err))
		}
		delete(c.chips, name)
	}
	return errors.Join(errs...)
}

type cdevLine struct {
	line *gpiocdev.Line
	spec Spec
}

func (l *cdevLine) Configure(m Mode) error {
	var opts []gpiocdev.LineConfigOption
	switch m {
	case Disconnected:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithBiasDisabled}
	case Input:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsInput, bias(l.spec.Flags)}
	case OutputInactive:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsOutput(0)}
	case OutputActive:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsOutput(1)}
	default:
		return fmt.Errorf("configure %s: unknown mode %v", l.spec, m)
	}
	opts = append(opts, polarity(l.spec.Flags))
	if err := l.line.Reconfigure(opts...); err != nil {
		return fmt.Errorf("configure %s as %s: %w", l.spec, m, err)
	}
	return nil
}

func (l *cdevLine) Set(active bool) error {
	v := 0
	if active {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", l.spec, err)
	}
	return nil
}

func (l *cdevLine) Get() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", l.spec, err)
	}
	return v != 0, nil
}

// Close returns the line to an unbiased input before releasing it, so the
// controller board is not left powered after exit.
func (l *cdevLine) Close() error {
	var errs []error
	if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure %s: %w", l.spec, err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", l.spec, err))
	}
	return errors.Join(errs...)
}

// lineOption is accepted both at request time and by Reconfigure.
type lineOption interface {
	gpiocdev.LineReqOption
	gpiocdev.LineConfigOption
}

func polarity(f Flags) lineOption {
	if f&ActiveLow != 0 {
		return gpiocdev.AsActiveLow
	}
	return gpiocdev.AsActiveHigh
}

func bias(f Flags) lineOption {
	switch {
	case f&PullUp != 0:
		return gpiocdev.WithPullUp
	case f&PullDown != 0:
		return gpiocdev.WithPullDown
	}
	return gpiocdev.WithBiasDisabled
}
