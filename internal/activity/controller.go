package activity

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reprogrammer changes the polling interval of a running scheduler.
type Reprogrammer interface {
	Reprogram(interval time.Duration) error
}

// Controller reprograms the poll scheduler when the activity state changes.
type Controller struct {
	intervals Intervals
	sched     Reprogrammer
	log       *zap.SugaredLogger

	mu   sync.Mutex
	last State
}

// NewController creates a controller starting in Active.
func NewController(intervals Intervals, sched Reprogrammer, log *zap.SugaredLogger) *Controller {
	return &Controller{
		intervals: intervals,
		sched:     sched,
		log:       log.Named("activity"),
		last:      Active,
	}
}

// Handle applies the interval for s. Unknown states are rejected and leave
// the interval unchanged.
func (c *Controller) Handle(s State) error {
	interval, err := c.intervals.For(s)
	if err != nil {
		c.log.Warnw("unhandled activity state", "state", int(s))
		return err
	}
	c.log.Debugw("setting poll interval", "state", s, "interval", interval)
	if err := c.sched.Reprogram(interval); err != nil {
		return err
	}
	c.mu.Lock()
	c.last = s
	c.mu.Unlock()
	return nil
}

// Reset marks the state Active without reprogramming. It is used when the
// scheduler has just been started at the active interval.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.last = Active
	c.mu.Unlock()
}

// State returns the last state successfully applied.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
