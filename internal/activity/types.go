// Package activity maps keyboard activity states to polling intervals and
// tracks when the keyboard goes idle.
package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the keyboard activity state.
type State int

const (
	Active State = iota
	Idle
	Sleep
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Idle:
		return "IDLE"
	case Sleep:
		return "SLEEP"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrUnknownState is returned for values outside Active, Idle and Sleep.
var ErrUnknownState = errors.New("activity: unknown state")

// ParseState parses ACTIVE, IDLE or SLEEP, case-insensitively.
func ParseState(s string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACTIVE":
		return Active, nil
	case "IDLE":
		return Idle, nil
	case "SLEEP":
		return Sleep, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Intervals are the polling intervals per state.
type Intervals struct {
	Active time.Duration
	Idle   time.Duration
	Sleep  time.Duration
}

// For returns the interval for s.
func (iv Intervals) For(s State) (time.Duration, error) {
	switch s {
	case Active:
		return iv.Active, nil
	case Idle:
		return iv.Idle, nil
	case Sleep:
		return iv.Sleep, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownState, int(s))
}

// Validate requires every interval to be positive.
func (iv Intervals) Validate() error {
	for _, s := range []State{Active, Idle, Sleep} {
		d, _ := iv.For(s)
		if d <= 0 {
			return fmt.Errorf("%s polling interval must be positive, got %v", s, d)
		}
	}
	return nil
}
