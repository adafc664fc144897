package matrix

import (
	"errors"
	"fmt"
	"time"
)

// PowerMode selects how the controller board power line is handled.
type PowerMode int

const (
	// PowerToggled powers the board up for each sweep and down afterwards.
	PowerToggled PowerMode = iota
	// PowerAlwaysOn drives power once at init and never toggles it.
	PowerAlwaysOn
)

func (m PowerMode) String() string {
	switch m {
	case PowerToggled:
		return "toggled"
	case PowerAlwaysOn:
		return "always_on"
	}
	return fmt.Sprintf("power(%d)", int(m))
}

// ParsePowerMode parses "toggled" or "always_on".
func ParsePowerMode(s string) (PowerMode, error) {
	switch s {
	case "toggled":
		return PowerToggled, nil
	case "always_on":
		return PowerAlwaysOn, nil
	}
	return 0, fmt.Errorf("unknown power mode %q", s)
}

// DefaultPowerUp is how long the Topre controller board needs after power is
// applied before it can sense.
const DefaultPowerUp = 5 * time.Millisecond

// Config holds the hardware-characterized scan timings. It is never modified
// after the scanner is created.
type Config struct {
	// Relax is waited after driving the select lines, before the strobe.
	Relax time.Duration
	// Settle is waited after the strobe pulse, before reading the key line.
	Settle time.Duration
	// PowerUp is slept once per sweep after power-on sequencing.
	PowerUp time.Duration
	Power   PowerMode
}

var errNegativeDelay = errors.New("negative delay")

// Validate reports invalid timings.
func (c Config) Validate() error {
	if c.Relax < 0 {
		return fmt.Errorf("relax: %w", errNegativeDelay)
	}
	if c.Settle < 0 {
		return fmt.Errorf("settle: %w", errNegativeDelay)
	}
	if c.PowerUp < 0 {
		return fmt.Errorf("power up: %w", errNegativeDelay)
	}
	if c.Power != PowerToggled && c.Power != PowerAlwaysOn {
		return fmt.Errorf("unknown power mode %v", c.Power)
	}
	return nil
}
