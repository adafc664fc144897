// Package wake drives the keyboard's wake sensor: a powered sensor line that
// reports activity while the matrix is polled slowly.
package wake

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/topre-kscan/internal/gpio"
)

// Sensor is a powered wake sensor.
type Sensor struct {
	power  gpio.Line
	sensor gpio.Line
	log    *zap.SugaredLogger

	// Watching reports whether edges are delivered to the handler.
	Watching bool
}

// Open powers the sensor and configures its input. If o implements
// gpio.EdgeOpener, onWake is called whenever the sensor becomes active.
func Open(o gpio.Opener, power, sensor gpio.Spec, onWake func(), log *zap.SugaredLogger) (*Sensor, error) {
	log = log.Named("wake")
	s := &Sensor{log: log}

	p, err := o.Open(power)
	if err != nil {
		return nil, fmt.Errorf("open wake power: %w", err)
	}
	s.power = p
	if err := p.Configure(gpio.OutputActive); err != nil {
		p.Close()
		return nil, fmt.Errorf("power wake sensor: %w", err)
	}

	if eo, ok := o.(gpio.EdgeOpener); ok && onWake != nil {
		s.sensor, err = eo.OpenEdge(sensor, func(active bool) {
			if active {
				log.Debug("wake sensor triggered")
				onWake()
			}
		})
		s.Watching = err == nil
	} else {
		s.sensor, err = o.Open(sensor)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open wake sensor: %w", err)
	}
	if err := s.sensor.Configure(gpio.Input); err != nil {
		s.Close()
		return nil, fmt.Errorf("configure wake sensor: %w", err)
	}
	if !s.Watching {
		log.Info("backend cannot report edges, wake sensor powered only")
	}
	return s, nil
}

// Active reads the sensor level.
func (s *Sensor) Active() (bool, error) {
	return s.sensor.Get()
}

// Close powers the sensor down and releases both lines.
func (s *Sensor) Close() error {
	var errs []error
	if s.sensor != nil {
		if err := s.sensor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.power != nil {
		if err := s.power.Set(false); err != nil {
			errs = append(errs, err)
		}
		if err := s.power.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
