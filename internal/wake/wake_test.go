package wake

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/topre-kscan/internal/gpio"
)

// plainOpener hides the fake's edge support.
type plainOpener struct{ f *gpio.Fake }

func (p plainOpener) Open(s gpio.Spec) (gpio.Line, error) { return p.f.Open(s) }
func (p plainOpener) Close() error                        { return p.f.Close() }

func TestSensorPowersAndWatches(t *testing.T) {
	f := gpio.NewFake()
	wakes := 0
	s, err := Open(f, gpio.Spec{Name: "wake-power"}, gpio.Spec{Name: "wake-sensor"},
		func() { wakes++ }, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m := f.Line("wake-power").Mode(); m != gpio.OutputActive {
		t.Errorf("power: got %v, want output-active", m)
	}
	if m := f.Line("wake-sensor").Mode(); m != gpio.Input {
		t.Errorf("sensor: got %v, want input", m)
	}
	if !s.Watching {
		t.Fatal("expected edge watching on fake backend")
	}

	f.Line("wake-sensor").Trigger(true)
	f.Line("wake-sensor").Trigger(false)
	f.Line("wake-sensor").Trigger(true)
	if wakes != 2 {
		t.Errorf("expected 2 wakes (rising edges only), got %d", wakes)
	}

	active, err := s.Active()
	if err != nil || !active {
		t.Errorf("Active: got %v, %v", active, err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if f.Line("wake-power").Value() {
		t.Error("power should be off after Close")
	}
	if !f.Line("wake-sensor").Closed() || !f.Line("wake-power").Closed() {
		t.Error("lines should be closed")
	}
}

func TestSensorWithoutEdges(t *testing.T) {
	f := gpio.NewFake()
	s, err := Open(plainOpener{f}, gpio.Spec{Name: "wake-power"}, gpio.Spec{Name: "wake-sensor"},
		func() { t.Error("no edges expected") }, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Watching {
		t.Error("plain opener cannot watch edges")
	}
	f.Line("wake-sensor").Trigger(true)
}

func TestSensorOpenFailureReleasesPower(t *testing.T) {
	f := gpio.NewFake()
	f.OpenError = map[string]error{"wake-sensor": errors.New("busy")}

	_, err := Open(f, gpio.Spec{Name: "wake-power"}, gpio.Spec{Name: "wake-sensor"},
		func() {}, zaptest.NewLogger(t).Sugar())
	if err == nil {
		t.Fatal("expected error")
	}
	if !f.Line("wake-power").Closed() {
		t.Error("power line should be released on failure")
	}
}
