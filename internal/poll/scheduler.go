// Package poll schedules scan cycles at a programmable interval.
//
// The timer only ever submits a request into a single-slot queue; the work
// itself runs in Run, so a slow cycle never holds up the timer and at most
// one cycle executes at a time.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidInterval is returned for non-positive intervals.
var ErrInvalidInterval = errors.New("poll: interval must be positive")

// Scheduler fires work periodically on the goroutine running Run.
type Scheduler struct {
	work func()
	log  *zap.SugaredLogger

	mu       sync.Mutex
	interval time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
	since    time.Time // ticks stamped before this are stale

	// slot holds at most one pending request.
	slot chan struct{}
}

// New creates a stopped scheduler that runs work.
func New(work func(), log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		work: work,
		log:  log.Named("poll"),
		slot: make(chan struct{}, 1),
	}
}

// Run executes submitted work until ctx is done. It is the only goroutine
// that calls work.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.slot:
			s.work()
		}
	}
}

// Start begins ticking at interval. Starting a running scheduler restarts
// it at the new interval.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.interval = interval
	s.since = time.Now()
	s.ticker = time.NewTicker(interval)
	s.stop = make(chan struct{})
	go s.tickLoop(s.ticker, s.stop)
	s.log.Debugw("started", "interval", interval)
	return nil
}

// Stop halts the ticker so no further requests are submitted. A cycle
// already running completes normally and a request already submitted still
// runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopLocked() {
		s.log.Debug("stopped")
	}
}

func (s *Scheduler) stopLocked() bool {
	if s.ticker == nil {
		return false
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.stop = nil
	return true
}

// Reprogram changes the interval. The next tick arrives one new interval
// after the call; a running cycle and a request already submitted are
// unaffected. When stopped, the interval
// is recorded for Interval but polling does not start.
func (s *Scheduler) Reprogram(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = interval
	if s.ticker == nil {
		return nil
	}
	s.since = time.Now()
	s.ticker.Reset(interval)
	s.log.Debugw("reprogrammed", "interval", interval)
	return nil
}

// Interval returns the last programmed interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether the ticker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

func (s *Scheduler) tickLoop(t *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case at := <-t.C:
			s.submit(at, stop)
		}
	}
}

// submit queues a request unless one is already pending. Ticks raised before
// the last Start or Reprogram, or after Stop, are ignored.
func (s *Scheduler) submit(at time.Time, stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != stop || at.Before(s.since) {
		return
	}
	select {
	case s.slot <- struct{}{}:
	default:
	}
}
