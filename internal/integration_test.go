package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/topre-kscan/internal/activity"
	"github.com/sweeney/topre-kscan/internal/config"
	"github.com/sweeney/topre-kscan/internal/gpio"
	"github.com/sweeney/topre-kscan/internal/kscan"
	"github.com/sweeney/topre-kscan/internal/matrix"
	"github.com/sweeney/topre-kscan/internal/mqtt"
	"github.com/sweeney/topre-kscan/internal/serial"
	"github.com/sweeney/topre-kscan/internal/status"
	"github.com/sweeney/topre-kscan/internal/wake"
)

type noDelay struct{}

func (noDelay) Sleep(time.Duration)    {}
func (noDelay) BusyWait(time.Duration) {}

// syncPort is a serial port stand-in safe to read while the scan goroutine writes.
type syncPort struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *syncPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *syncPort) Close() error { return nil }

func (p *syncPort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}

// board decodes the select lines of a fake backend and answers with the
// state of the addressed cell.
type board struct {
	fake    *gpio.Fake
	mu      sync.Mutex
	pressed matrix.Readings
}

func (b *board) press(row, col int, down bool) {
	b.mu.Lock()
	b.pressed[matrix.Index(row, col)] = down
	b.mu.Unlock()
}

func (b *board) sense() (bool, error) {
	addr := 0
	for i := 0; i < gpio.SelectLines; i++ {
		if b.fake.Line(fmt.Sprintf("bit%d", i)).Value() {
			addr |= 1 << i
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pressed[matrix.Index(addr&7, addr>>3)], nil
}

type rig struct {
	cfg  *config.Config
	fake *gpio.Fake
	kb   *board
	dev  *kscan.Device
	pub  *mqtt.FakePublisher
	port *syncPort
}

func newRig(t *testing.T) *rig {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	cfg := config.Default()
	cfg.Backend = gpio.BackendFake
	cfg.ActivePollingIntervalMs = 2
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	opener, err := gpio.OpenBackend(cfg.Backend)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	fake := opener.(*gpio.Fake)
	t.Cleanup(func() { fake.Close() })

	lines, err := gpio.OpenSet(fake, cfg.Layout())
	if err != nil {
		t.Fatalf("open set: %v", err)
	}
	kb := &board{fake: fake}
	fake.Line("key").Sense = kb.sense

	mc, err := cfg.Matrix()
	if err != nil {
		t.Fatalf("matrix config: %v", err)
	}
	dev, err := kscan.NewWithDelay(lines, mc, cfg.Intervals(), noDelay{}, log)
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	if err := dev.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	r := &rig{cfg: cfg, fake: fake, kb: kb, dev: dev, pub: mqtt.NewFakePublisher(), port: &syncPort{}}
	sink := serial.NewSink(r.port, log)
	if err := dev.Configure(func(row, col int, pressed bool) {
		c := matrix.Change{Row: row, Col: col, Pressed: pressed}
		r.pub.Publish(mqtt.KeyEvent{Timestamp: time.Now(), Change: c})
		sink.Write(c)
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dev.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		dev.Disable()
		cancel()
		<-done
	})
	return r
}

func (r *rig) waitEvents(t *testing.T, n int) []mqtt.KeyEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := r.pub.Events(); len(ev) >= n {
			return ev
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", n, len(r.pub.Events()))
	return nil
}

func TestIntegrationKeyPressToMQTTAndSerial(t *testing.T) {
	r := newRig(t)
	if err := r.dev.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}

	r.kb.press(3, 5, true)
	r.waitEvents(t, 1)
	r.kb.press(3, 5, false)
	events := r.waitEvents(t, 2)

	if len(events) != 2 {
		t.Fatalf("expected exactly 2 events, got %v", events)
	}
	if events[0].Change != (matrix.Change{Row: 3, Col: 5, Pressed: true}) {
		t.Errorf("first event: %v", events[0].Change)
	}
	if events[1].Change != (matrix.Change{Row: 3, Col: 5, Pressed: false}) {
		t.Errorf("second event: %v", events[1].Change)
	}

	var parsed mqtt.Payload
	if err := json.Unmarshal(r.pub.Payloads()[0], &parsed); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if parsed.Key.Index != 29 || parsed.Key.State != mqtt.StatePressed {
		t.Errorf("payload: %+v", parsed.Key)
	}

	if got, want := r.port.String(), "DOWN 3 5\nUP 3 5\n"; got != want {
		t.Errorf("serial output %q, want %q", got, want)
	}
}

func TestIntegrationNoEventsWhileIdleMatrix(t *testing.T) {
	r := newRig(t)
	if err := r.dev.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.dev.Stats().Scans < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.dev.Stats().Scans < 5 {
		t.Fatal("device did not scan")
	}
	if n := len(r.pub.Events()); n != 0 {
		t.Errorf("expected no events with no keys held, got %d", n)
	}
}

func TestIntegrationActivityChangesInterval(t *testing.T) {
	r := newRig(t)
	if err := r.dev.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}

	for _, tc := range []struct {
		state activity.State
		want  time.Duration
	}{
		{activity.Sleep, time.Second},
		{activity.Idle, 100 * time.Millisecond},
		{activity.Active, 2 * time.Millisecond},
	} {
		if err := r.dev.SetActivity(tc.state); err != nil {
			t.Fatalf("set %v: %v", tc.state, err)
		}
		if got := r.dev.Interval(); got != tc.want {
			t.Errorf("%v: interval %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestIntegrationStatusReflectsMatrix(t *testing.T) {
	r := newRig(t)
	if err := r.dev.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}
	r.kb.press(7, 7, true)
	r.waitEvents(t, 1)

	tr := status.NewTracker(time.Now(), status.Config{Backend: r.cfg.Backend})
	tr.Refresh(r.dev)

	var parsed status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if len(parsed.Status.Pressed) != 1 || parsed.Status.Pressed[0].Index != 63 {
		t.Errorf("pressed: %+v", parsed.Status.Pressed)
	}
	if !parsed.Status.Scanning || parsed.Status.Activity != "ACTIVE" {
		t.Errorf("status: scanning=%v activity=%s", parsed.Status.Scanning, parsed.Status.Activity)
	}
}

func TestIntegrationWakeSensorEdge(t *testing.T) {
	r := newRig(t)
	power, sensor := r.cfg.WakeSpecs()

	woke := make(chan struct{}, 1)
	ws, err := wake.Open(r.fake, power, sensor, func() { woke <- struct{}{} }, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("open wake: %v", err)
	}
	defer ws.Close()

	if !r.fake.Line("wake-power").Value() {
		t.Error("wake sensor should be powered")
	}
	r.fake.Line("wake-sensor").Trigger(true)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("wake handler not called")
	}
}
