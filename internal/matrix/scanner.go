package matrix

import (
	"errors"
	"fmt"

	"github.com/sweeney/topre-kscan/internal/gpio"
	"github.com/sweeney/topre-kscan/internal/irq"
)

// Scanner sweeps the matrix through a hysteresis strobe sense circuit.
// It owns the line set and the store; only one goroutine may call Scan.
type Scanner struct {
	lines *gpio.Set
	cfg   Config
	delay Delayer
	store Store

	// critical runs the strobe pulse and key read with interrupts masked.
	critical func(func() error) error
}

// NewScanner creates a scanner over lines. A nil delay uses SystemDelay.
func NewScanner(lines *gpio.Set, cfg Config, delay Delayer) *Scanner {
	if delay == nil {
		delay = SystemDelay{}
	}
	return &Scanner{
		lines:    lines,
		cfg:      cfg,
		delay:    delay,
		critical: irq.Do,
	}
}

// Init puts every line into its safe state and marks all cells released.
func (s *Scanner) Init() error {
	for i, b := range s.lines.Bits {
		if err := b.Configure(gpio.OutputInactive); err != nil {
			return fmt.Errorf("init select line %d: %w", i, err)
		}
	}
	power := gpio.OutputInactive
	if s.cfg.Power == PowerAlwaysOn {
		power = gpio.OutputActive
	}
	if err := s.lines.Power.Configure(power); err != nil {
		return fmt.Errorf("init power: %w", err)
	}
	if err := s.lines.Key.Configure(gpio.Disconnected); err != nil {
		return fmt.Errorf("init key: %w", err)
	}
	if err := s.lines.Hys.Configure(gpio.OutputInactive); err != nil {
		return fmt.Errorf("init hysteresis: %w", err)
	}
	if err := s.lines.Strobe.Configure(gpio.OutputInactive); err != nil {
		return fmt.Errorf("init strobe: %w", err)
	}
	s.store.Reset()
	return nil
}

// Scan performs one full sweep and returns the cells whose state changed
// since the previous successful sweep, in row-major order.
//
// If any line operation fails, the sweep is abandoned: the board is powered
// down best effort, the store is left untouched and no changes are returned.
func (s *Scanner) Scan() ([]Change, error) {
	var read Readings
	if err := s.sweep(&read); err != nil {
		return nil, errors.Join(err, s.abort())
	}
	if err := s.powerDown(); err != nil {
		return nil, err
	}
	return s.store.Merge(&read), nil
}

// Pressed returns the stored state of every cell.
func (s *Scanner) Pressed() Readings {
	return s.store.Snapshot()
}

func (s *Scanner) sweep(read *Readings) error {
	if err := s.powerUp(); err != nil {
		return err
	}
	s.delay.Sleep(s.cfg.PowerUp)

	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			pressed, err := s.readCell(r, c)
			if err != nil {
				return fmt.Errorf("scan cell (%d,%d): %w", r, c, err)
			}
			read[Index(r, c)] = pressed
		}
	}
	return nil
}

func (s *Scanner) powerUp() error {
	if err := s.lines.Key.Configure(gpio.Input); err != nil {
		return fmt.Errorf("power up key: %w", err)
	}
	if err := s.lines.Strobe.Set(true); err != nil {
		return fmt.Errorf("power up strobe: %w", err)
	}
	if s.cfg.Power == PowerToggled {
		if err := s.lines.Power.Set(true); err != nil {
			return fmt.Errorf("power up: %w", err)
		}
	}
	return nil
}

func (s *Scanner) readCell(r, c int) (bool, error) {
	if err := s.selectCell(r, c); err != nil {
		return false, err
	}

	// Bias the comparator toward the last reported state.
	if err := s.lines.Hys.Set(s.store.Pressed(Index(r, c))); err != nil {
		return false, fmt.Errorf("set hysteresis: %w", err)
	}

	s.delay.BusyWait(s.cfg.Relax)

	var pressed bool
	err := s.critical(func() error {
		// Falling edge triggers sense-and-hold.
		if err := s.lines.Strobe.Set(false); err != nil {
			return fmt.Errorf("strobe low: %w", err)
		}
		if err := s.lines.Strobe.Set(true); err != nil {
			return fmt.Errorf("strobe high: %w", err)
		}
		s.delay.BusyWait(s.cfg.Settle)
		v, err := s.lines.Key.Get()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		pressed = v
		return nil
	})
	if err != nil {
		return false, err
	}

	if err := s.lines.Hys.Set(false); err != nil {
		return false, fmt.Errorf("clear hysteresis: %w", err)
	}
	return pressed, nil
}

// selectCell drives the row into select lines 0-2 and the column into 3-5.
func (s *Scanner) selectCell(r, c int) error {
	addr := r | c<<3
	for bit, line := range s.lines.Bits {
		if err := line.Set(addr&(1<<bit) != 0); err != nil {
			return fmt.Errorf("select line %d: %w", bit, err)
		}
	}
	return nil
}

// abort clears the hysteresis line, which a failed sweep may have left set,
// and powers down.
func (s *Scanner) abort() error {
	var errs []error
	if err := s.lines.Hys.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("abort clear hysteresis: %w", err))
	}
	return errors.Join(append(errs, s.powerDown())...)
}

// powerDown drives everything low and disconnects the key line to avoid
// current leakage. Every step is attempted even if an earlier one fails.
func (s *Scanner) powerDown() error {
	var errs []error
	for i, b := range s.lines.Bits {
		if err := b.Set(false); err != nil {
			errs = append(errs, fmt.Errorf("power down select line %d: %w", i, err))
		}
	}
	if err := s.lines.Key.Configure(gpio.Disconnected); err != nil {
		errs = append(errs, fmt.Errorf("power down key: %w", err))
	}
	if s.cfg.Power == PowerToggled {
		if err := s.lines.Power.Set(false); err != nil {
			errs = append(errs, fmt.Errorf("power down: %w", err))
		}
	}
	if err := s.lines.Strobe.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("power down strobe: %w", err))
	}
	return errors.Join(errs...)
}
