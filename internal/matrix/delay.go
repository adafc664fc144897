package matrix

import "time"

// Delayer provides the waits used during a sweep.
type Delayer interface {
	// Sleep yields for d. Used once per sweep for power-up.
	Sleep(d time.Duration)
	// BusyWait spins for d without yielding. Used for microsecond delays.
	BusyWait(d time.Duration)
}

// SystemDelay waits on the monotonic clock.
type SystemDelay struct{}

// Sleep calls time.Sleep.
func (SystemDelay) Sleep(d time.Duration) {
	time.Sleep(d)
}

// BusyWait spins until d has elapsed.
func (SystemDelay) BusyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
