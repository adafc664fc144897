package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/topre-kscan/internal/gpio"
	"github.com/sweeney/topre-kscan/internal/matrix"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kscan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Backend != gpio.BackendChardev {
		t.Errorf("Backend: got %q", cfg.Backend)
	}
	if len(cfg.Pins.Bits) != gpio.SelectLines {
		t.Errorf("default bits: got %d", len(cfg.Pins.Bits))
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout: got %v", cfg.IdleTimeout)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ActivePollingIntervalMs != 10 {
		t.Errorf("ActivePollingIntervalMs: got %d, want 10", cfg.ActivePollingIntervalMs)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend: fake
chip: gpiochip4
power_mode: always_on
matrix_relax_us: 7
adc_read_settle_us: 3
active_polling_interval_ms: 5
idle_timeout: 45s
sleep_timeout: 0s
pins:
  power: {offset: 2, active_low: true}
  key: {offset: 3, pull_down: true}
  hys: {offset: 4}
  strobe: {offset: 14, high_drive: true}
  bits:
    - {offset: 20}
    - {offset: 21}
    - {offset: 22}
    - {offset: 23}
    - {offset: 24}
    - {offset: 25}
mqtt:
  broker: tcp://broker:1883
  topic_prefix: desk/kb
`)

	cfg, err := Load(path, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend != "fake" || cfg.Chip != "gpiochip4" {
		t.Errorf("backend/chip: got %q/%q", cfg.Backend, cfg.Chip)
	}
	if cfg.IdleTimeout != 45*time.Second || cfg.SleepTimeout != 0 {
		t.Errorf("timeouts: got %v/%v", cfg.IdleTimeout, cfg.SleepTimeout)
	}
	if cfg.IdlePollingIntervalMs != 100 {
		t.Errorf("unset key should keep default, got %d", cfg.IdlePollingIntervalMs)
	}
	if cfg.MQTT.TopicPrefix != "desk/kb" || cfg.MQTT.ClientID != "topre-kscan" {
		t.Errorf("MQTT: got %+v", cfg.MQTT)
	}

	l := cfg.Layout()
	if l.Power != (gpio.Spec{Name: "power", Chip: "gpiochip4", Offset: 2, Flags: gpio.ActiveLow}) {
		t.Errorf("power spec: %+v", l.Power)
	}
	if l.Key.Flags != gpio.PullDown || l.Strobe.Flags != gpio.HighDrive {
		t.Errorf("flags: key=%v strobe=%v", l.Key.Flags, l.Strobe.Flags)
	}
	if l.Bits[5].Offset != 25 || l.Bits[5].Name != "bit5" {
		t.Errorf("bit5: %+v", l.Bits[5])
	}

	mc, err := cfg.Matrix()
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	want := matrix.Config{Relax: 7 * time.Microsecond, Settle: 3 * time.Microsecond, PowerUp: 5 * time.Millisecond, Power: matrix.PowerAlwaysOn}
	if mc != want {
		t.Errorf("Matrix: got %+v, want %+v", mc, want)
	}

	iv := cfg.Intervals()
	if iv.Active != 5*time.Millisecond || iv.Idle != 100*time.Millisecond || iv.Sleep != time.Second {
		t.Errorf("Intervals: got %+v", iv)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("KSCAN_BACKEND", "fake")
	t.Setenv("KSCAN_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("KSCAN_SLEEP_POLLING_INTERVAL_MS", "2000")

	cfg, err := Load("", zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "fake" {
		t.Errorf("Backend: got %q", cfg.Backend)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" {
		t.Errorf("Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.SleepPollingIntervalMs != 2000 {
		t.Errorf("SleepPollingIntervalMs: got %d", cfg.SleepPollingIntervalMs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zaptest.NewLogger(t).Sugar())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "active_polling_interval_ms: 0\n")
	_, err := Load(path, zaptest.NewLogger(t).Sugar())
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "spi" }},
		{"unknown power mode", func(c *Config) { c.PowerMode = "sometimes" }},
		{"too few bits", func(c *Config) { c.Pins.Bits = c.Pins.Bits[:5] }},
		{"negative relax", func(c *Config) { c.MatrixRelaxUs = -1 }},
		{"negative settle", func(c *Config) { c.ADCReadSettleUs = -1 }},
		{"zero idle interval", func(c *Config) { c.IdlePollingIntervalMs = 0 }},
		{"negative sleep timeout", func(c *Config) { c.SleepTimeout = -time.Second }},
		{"duplicate offset", func(c *Config) { c.Pins.Hys.Offset = c.Pins.Key.Offset }},
		{"bit clashes with strobe", func(c *Config) { c.Pins.Bits[2].Offset = c.Pins.Strobe.Offset }},
		{"both pulls", func(c *Config) { c.Pins.Key.PullUp, c.Pins.Key.PullDown = true, true }},
		{"wake clashes with matrix", func(c *Config) {
			c.Wake.Enabled = true
			c.Wake.Sensor.Offset = c.Pins.Power.Offset
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidateErrorOrder(t *testing.T) {
	cfg := Default()
	cfg.PowerUpMs = -1
	cfg.MatrixRelaxUs = -1
	cfg.SleepPollingIntervalMs = 0
	cfg.ActivePollingIntervalMs = 0

	want := strings.Join([]string{
		"invalid config: matrix_relax_us is negative",
		"invalid config: power_up_ms is negative",
		"invalid config: active_polling_interval_ms must be positive",
		"invalid config: sleep_polling_interval_ms must be positive",
	}, "\n")
	for i := 0; i < 10; i++ {
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		if err.Error() != want {
			t.Fatalf("run %d: got\n%v\nwant\n%v", i, err, want)
		}
	}
}

func TestValidateIgnoresDisabledWakePins(t *testing.T) {
	cfg := Default()
	cfg.Wake.Sensor.Offset = cfg.Pins.Power.Offset
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled wake pins should not be checked: %v", err)
	}
}

func TestWakeSpecs(t *testing.T) {
	cfg := Default()
	cfg.Wake.Sensor.ActiveLow = true
	power, sensor := cfg.WakeSpecs()
	if power.Name != "wake-power" || power.Offset != 24 {
		t.Errorf("power: %+v", power)
	}
	if sensor.Name != "wake-sensor" || sensor.Flags != gpio.ActiveLow {
		t.Errorf("sensor: %+v", sensor)
	}
}
