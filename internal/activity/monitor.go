package activity

import "time"

// Monitor derives the activity state from the time of the last key event.
// It is pure: time is always passed in.
type Monitor struct {
	idleTimeout  time.Duration
	sleepTimeout time.Duration
	lastEvent    time.Time
	state        State
}

// NewMonitor creates a monitor that is Active at start. A zero timeout
// disables that tier.
func NewMonitor(idleTimeout, sleepTimeout time.Duration, start time.Time) *Monitor {
	return &Monitor{
		idleTimeout:  idleTimeout,
		sleepTimeout: sleepTimeout,
		lastEvent:    start,
		state:        Active,
	}
}

// Record notes activity at t. It returns true if the state changed to Active.
func (m *Monitor) Record(t time.Time) bool {
	if t.After(m.lastEvent) {
		m.lastEvent = t
	}
	if m.state == Active {
		return false
	}
	m.state = Active
	return true
}

// Check evaluates the timeouts at now and returns the current state and
// whether it changed since the previous call.
func (m *Monitor) Check(now time.Time) (State, bool) {
	quiet := now.Sub(m.lastEvent)
	next := Active
	switch {
	case m.sleepTimeout > 0 && quiet >= m.sleepTimeout:
		next = Sleep
	case m.idleTimeout > 0 && quiet >= m.idleTimeout:
		next = Idle
	}
	if next == m.state {
		return next, false
	}
	m.state = next
	return next, true
}

// State returns the state from the last Record or Check.
func (m *Monitor) State() State {
	return m.state
}
