// Package gpio provides named digital lines with hardware abstraction.
// Real backends use the Linux GPIO character device, periph.io, go-rpio or
// TinyGo's machine package. The fake backend allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Mode is the electrical configuration of a line.
type Mode int

const (
	// Disconnected leaves the line floating with no bias, to save power.
	Disconnected Mode = iota
	Input
	OutputInactive
	OutputActive
)

func (m Mode) String() string {
	switch m {
	case Disconnected:
		return "disconnected"
	case Input:
		return "input"
	case OutputInactive:
		return "output-inactive"
	case OutputActive:
		return "output-active"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Flags carries the active-state and bias configuration of a line.
type Flags uint8

const (
	ActiveLow Flags = 1 << iota
	PullUp
	PullDown
	// HighDrive requests a strong output driver. Backends that cannot
	// select drive strength ignore it.
	HighDrive
)

// Spec identifies one physical line. It is immutable once a Set is opened.
type Spec struct {
	Name   string // role, e.g. "strobe"
	Chip   string // controller, e.g. "gpiochip0"
	Offset int    // line number on the controller (BCM number on a Pi)
	Flags  Flags
}

func (s Spec) String() string {
	return fmt.Sprintf("%s(%s:%d)", s.Name, s.Chip, s.Offset)
}

// Line is a single configured digital line.
// Values are logical: true means active, after ActiveLow is applied.
type Line interface {
	Configure(m Mode) error
	Set(active bool) error
	Get() (bool, error)
	Close() error
}

// Opener resolves line specs to lines on one backend.
type Opener interface {
	Open(spec Spec) (Line, error)

	// Close releases backend resources. Lines must be closed first.
	Close() error
}

// EdgeOpener is implemented by backends that can report input changes.
// The handler receives the new logical level.
type EdgeOpener interface {
	OpenEdge(spec Spec, handler func(active bool)) (Line, error)
}

// ErrUnknownBackend is returned by OpenBackend for unsupported names.
var ErrUnknownBackend = errors.New("gpio: unknown backend")

// ErrUnsupported is returned by backends not available on this platform.
var ErrUnsupported = errors.New("gpio: not supported on this platform")

// DefaultChip is the controller used when a spec leaves Chip empty.
const DefaultChip = "gpiochip0"

// Consumer is the label attached to lines requested from the kernel.
const Consumer = "topre-kscan"
