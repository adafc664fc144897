// Package kscan is the driver facade: it wires the matrix scanner, the poll
// scheduler and the activity rate controller behind a configure/enable/disable
// lifecycle.
package kscan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/topre-kscan/internal/activity"
	"github.com/sweeney/topre-kscan/internal/gpio"
	"github.com/sweeney/topre-kscan/internal/matrix"
	"github.com/sweeney/topre-kscan/internal/poll"
)

// Callback receives one call per changed cell, in row-major order. It runs on
// the scan goroutine and must not block appreciably.
type Callback func(row, col int, pressed bool)

var (
	ErrNoCallback         = errors.New("kscan: callback is required")
	ErrNotInitialized     = errors.New("kscan: device not initialized")
	ErrAlreadyInitialized = errors.New("kscan: device already initialized")
)

// Stats counts scan outcomes since Init.
type Stats struct {
	Scans       int
	FailedScans int
	Changes     int
	LastScan    time.Time
	LastError   string
}

// Device is one keyboard matrix instance.
type Device struct {
	scanner   *matrix.Scanner
	sched     *poll.Scheduler
	rate      *activity.Controller
	intervals activity.Intervals
	log       *zap.SugaredLogger
	now       func() time.Time

	mu          sync.Mutex
	callback    Callback
	initialized bool
	stats       Stats
	pressed     matrix.Readings // copy of the store after the last good scan
}

// New creates a device over an opened line set. Nothing touches the lines
// until Init.
func New(lines *gpio.Set, cfg matrix.Config, intervals activity.Intervals, log *zap.SugaredLogger) (*Device, error) {
	return NewWithDelay(lines, cfg, intervals, nil, log)
}

// NewWithDelay is New with an explicit delay source.
func NewWithDelay(lines *gpio.Set, cfg matrix.Config, intervals activity.Intervals, delay matrix.Delayer, log *zap.SugaredLogger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	if err := intervals.Validate(); err != nil {
		return nil, fmt.Errorf("poll intervals: %w", err)
	}
	log = log.Named("kscan")
	d := &Device{
		scanner:   matrix.NewScanner(lines, cfg, delay),
		intervals: intervals,
		log:       log,
		now:       time.Now,
	}
	d.sched = poll.New(d.poll, log)
	d.rate = activity.NewController(intervals, d.sched, log)
	return d, nil
}

// Init puts the lines into their safe state and marks every cell released.
// It must be called exactly once, before any other operation.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return ErrAlreadyInitialized
	}
	d.log.Debug("init")
	if err := d.scanner.Init(); err != nil {
		return fmt.Errorf("init lines: %w", err)
	}
	d.initialized = true
	return nil
}

// Configure registers the change callback.
func (d *Device) Configure(cb Callback) error {
	if cb == nil {
		return ErrNoCallback
	}
	d.mu.Lock()
	d.callback = cb
	d.mu.Unlock()
	d.log.Debug("configured")
	return nil
}

// Enable starts polling at the active interval and resets the activity state
// to Active. A callback must have been configured.
func (d *Device) Enable() error {
	if !d.isInitialized() {
		return ErrNotInitialized
	}
	d.mu.Lock()
	configured := d.callback != nil
	d.mu.Unlock()
	if !configured {
		return ErrNoCallback
	}
	d.log.Debug("enable")
	if err := d.sched.Start(d.intervals.Active); err != nil {
		return err
	}
	d.rate.Reset()
	return nil
}

// Disable stops polling. A cycle already running still delivers its callbacks.
func (d *Device) Disable() error {
	if !d.isInitialized() {
		return ErrNotInitialized
	}
	d.log.Debug("disable")
	d.sched.Stop()
	return nil
}

// SetActivity reprograms the poll interval for s.
func (d *Device) SetActivity(s activity.State) error {
	return d.rate.Handle(s)
}

// Activity returns the last applied activity state.
func (d *Device) Activity() activity.State {
	return d.rate.State()
}

// Interval returns the current poll interval.
func (d *Device) Interval() time.Duration {
	return d.sched.Interval()
}

// Enabled reports whether polling is running.
func (d *Device) Enabled() bool {
	return d.sched.Running()
}

// Run executes scan cycles until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	return d.sched.Run(ctx)
}

// ScanOnce performs one sweep synchronously and returns the changes without
// invoking the callback. It must not be used while Run is active.
func (d *Device) ScanOnce() ([]matrix.Change, error) {
	if !d.isInitialized() {
		return nil, ErrNotInitialized
	}
	changes, err := d.scanner.Scan()
	d.record(changes, err)
	return changes, err
}

// Pressed returns the state of every cell as of the last successful scan.
// It is safe to call while Run is active.
func (d *Device) Pressed() matrix.Readings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressed
}

// Stats returns scan counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) isInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// poll is one scan cycle, run by the scheduler.
func (d *Device) poll() {
	changes, err := d.scanner.Scan()
	d.record(changes, err)
	if err != nil {
		d.log.Warnw("scan cycle failed", "error", err)
		return
	}

	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb == nil {
		return
	}
	for _, c := range changes {
		cb(c.Row, c.Col, c.Pressed)
	}
}

// record runs on the goroutine that scanned, so reading the scanner's store
// here does not race with Scan.
func (d *Device) record(changes []matrix.Change, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Scans++
	d.stats.LastScan = d.now()
	if err != nil {
		d.stats.FailedScans++
		d.stats.LastError = err.Error()
		return
	}
	d.stats.Changes += len(changes)
	d.pressed = d.scanner.Pressed()
}
