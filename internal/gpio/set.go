package gpio

import (
	"errors"
	"fmt"
)

// SelectLines is the number of multiplexer address lines.
const SelectLines = 6

// Layout names every line the matrix uses.
type Layout struct {
	Bits   [SelectLines]Spec
	Power  Spec
	Key    Spec
	Hys    Spec
	Strobe Spec
}

// Specs returns all specs in a fixed order: power, key, hys, strobe, bits.
func (l Layout) Specs() []Spec {
	out := []Spec{l.Power, l.Key, l.Hys, l.Strobe}
	return append(out, l.Bits[:]...)
}

// Set holds the opened lines of a Layout. Lookups happen once in OpenSet;
// the scan path only touches these fields.
type Set struct {
	Bits   [SelectLines]Line
	Power  Line
	Key    Line
	Hys    Line
	Strobe Line
}

// OpenSet opens every line of l on o. On failure, lines opened so far are closed.
func OpenSet(o Opener, l Layout) (*Set, error) {
	s := &Set{}
	open := func(dst *Line, spec Spec) error {
		line, err := o.Open(spec)
		if err != nil {
			return fmt.Errorf("open %s: %w", spec, err)
		}
		*dst = line
		return nil
	}

	targets := []struct {
		dst  *Line
		spec Spec
	}{
		{&s.Power, l.Power},
		{&s.Key, l.Key},
		{&s.Hys, l.Hys},
		{&s.Strobe, l.Strobe},
	}
	for i := range s.Bits {
		targets = append(targets, struct {
			dst  *Line
			spec Spec
		}{&s.Bits[i], l.Bits[i]})
	}

	for _, t := range targets {
		if err := open(t.dst, t.spec); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases every opened line.
func (s *Set) Close() error {
	var errs []error
	closeLine := func(l Line) {
		if l == nil {
			return
		}
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closeLine(s.Power)
	closeLine(s.Key)
	closeLine(s.Hys)
	closeLine(s.Strobe)
	for _, b := range s.Bits {
		closeLine(b)
	}
	return errors.Join(errs...)
}
