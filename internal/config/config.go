// Package config loads the daemon configuration from a YAML file and
// KSCAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sweeney/topre-kscan/internal/activity"
	"github.com/sweeney/topre-kscan/internal/gpio"
	"github.com/sweeney/topre-kscan/internal/matrix"
)

// EnvPrefix prefixes environment overrides, e.g. KSCAN_MQTT_BROKER.
const EnvPrefix = "KSCAN"

// Pin is one line's offset and electrical flags.
type Pin struct {
	Offset    int  `mapstructure:"offset"`
	ActiveLow bool `mapstructure:"active_low"`
	PullUp    bool `mapstructure:"pull_up"`
	PullDown  bool `mapstructure:"pull_down"`
	HighDrive bool `mapstructure:"high_drive"`
}

// Pins is the matrix line layout.
type Pins struct {
	Power  Pin   `mapstructure:"power"`
	Key    Pin   `mapstructure:"key"`
	Hys    Pin   `mapstructure:"hys"`
	Strobe Pin   `mapstructure:"strobe"`
	Bits   []Pin `mapstructure:"bits"`
}

// Wake configures the optional wake sensor.
type Wake struct {
	Enabled bool `mapstructure:"enabled"`
	Power   Pin  `mapstructure:"power"`
	Sensor  Pin  `mapstructure:"sensor"`
}

// MQTT configures the event publisher. An empty broker disables it.
type MQTT struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// Serial configures the line-oriented serial mirror. An empty device disables it.
type Serial struct {
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`
}

// Config is the complete daemon configuration.
type Config struct {
	Backend   string `mapstructure:"backend"`
	Chip      string `mapstructure:"chip"`
	Pins      Pins   `mapstructure:"pins"`
	PowerMode string `mapstructure:"power_mode"`

	MatrixRelaxUs   int `mapstructure:"matrix_relax_us"`
	ADCReadSettleUs int `mapstructure:"adc_read_settle_us"`
	PowerUpMs       int `mapstructure:"power_up_ms"`

	ActivePollingIntervalMs int `mapstructure:"active_polling_interval_ms"`
	IdlePollingIntervalMs   int `mapstructure:"idle_polling_interval_ms"`
	SleepPollingIntervalMs  int `mapstructure:"sleep_polling_interval_ms"`

	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	SleepTimeout time.Duration `mapstructure:"sleep_timeout"`

	Wake      Wake          `mapstructure:"wake"`
	MQTT      MQTT          `mapstructure:"mqtt"`
	HTTP      string        `mapstructure:"http"`
	Serial    Serial        `mapstructure:"serial"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

var defaultBits = []int{5, 6, 12, 13, 16, 19}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", gpio.BackendChardev)
	v.SetDefault("chip", gpio.DefaultChip)
	v.SetDefault("pins.power.offset", 17)
	v.SetDefault("pins.key.offset", 27)
	v.SetDefault("pins.hys.offset", 22)
	v.SetDefault("pins.strobe.offset", 23)

	bits := make([]map[string]any, len(defaultBits))
	for i, off := range defaultBits {
		bits[i] = map[string]any{"offset": off}
	}
	v.SetDefault("pins.bits", bits)

	v.SetDefault("power_mode", matrix.PowerToggled.String())
	v.SetDefault("matrix_relax_us", 10)
	v.SetDefault("adc_read_settle_us", 5)
	v.SetDefault("power_up_ms", int(matrix.DefaultPowerUp/time.Millisecond))
	v.SetDefault("active_polling_interval_ms", 10)
	v.SetDefault("idle_polling_interval_ms", 100)
	v.SetDefault("sleep_polling_interval_ms", 1000)
	v.SetDefault("idle_timeout", 30*time.Second)
	v.SetDefault("sleep_timeout", 10*time.Minute)

	v.SetDefault("wake.enabled", false)
	v.SetDefault("wake.power.offset", 24)
	v.SetDefault("wake.sensor.offset", 25)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "topre-kscan")
	v.SetDefault("mqtt.topic_prefix", "keyboard/kscan")
	v.SetDefault("http", ":8080")
	v.SetDefault("serial.device", "")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("heartbeat", 15*time.Minute)
}

// Load reads path (if non-empty) over the defaults, applies KSCAN_*
// environment overrides and validates the result.
func Load(path string, logger *zap.SugaredLogger) (*Config, error) {
	logger = logger.Named("config")

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		logger.Debugw("loaded config file", "path", v.ConfigFileUsed())
	} else {
		logger.Debug("no config file given, using defaults")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return cfg
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(gpio.Backends, c.Backend) {
		errs = append(errs, invalid("backend %q, want one of %v", c.Backend, gpio.Backends))
	}
	if _, err := matrix.ParsePowerMode(c.PowerMode); err != nil {
		errs = append(errs, invalid("power_mode: %v", err))
	}
	if len(c.Pins.Bits) != gpio.SelectLines {
		errs = append(errs, invalid("pins.bits has %d entries, want %d", len(c.Pins.Bits), gpio.SelectLines))
	}

	type field struct {
		name string
		v    int
	}
	for _, f := range []field{
		{"matrix_relax_us", c.MatrixRelaxUs},
		{"adc_read_settle_us", c.ADCReadSettleUs},
		{"power_up_ms", c.PowerUpMs},
	} {
		if f.v < 0 {
			errs = append(errs, invalid("%s is negative", f.name))
		}
	}
	for _, f := range []field{
		{"active_polling_interval_ms", c.ActivePollingIntervalMs},
		{"idle_polling_interval_ms", c.IdlePollingIntervalMs},
		{"sleep_polling_interval_ms", c.SleepPollingIntervalMs},
	} {
		if f.v <= 0 {
			errs = append(errs, invalid("%s must be positive", f.name))
		}
	}
	if c.IdleTimeout < 0 || c.SleepTimeout < 0 || c.Heartbeat < 0 {
		errs = append(errs, invalid("timeouts must not be negative"))
	}

	seen := map[int]string{}
	for _, s := range c.specs() {
		if s.Flags&gpio.PullUp != 0 && s.Flags&gpio.PullDown != 0 {
			errs = append(errs, invalid("pin %s has both pull_up and pull_down", s.Name))
		}
		if s.Offset < 0 {
			errs = append(errs, invalid("pin %s has negative offset", s.Name))
		}
		if other, dup := seen[s.Offset]; dup {
			errs = append(errs, invalid("pins %s and %s share offset %d", other, s.Name, s.Offset))
		}
		seen[s.Offset] = s.Name
	}

	return errors.Join(errs...)
}

func (c *Config) spec(name string, p Pin) gpio.Spec {
	var f gpio.Flags
	if p.ActiveLow {
		f |= gpio.ActiveLow
	}
	if p.PullUp {
		f |= gpio.PullUp
	}
	if p.PullDown {
		f |= gpio.PullDown
	}
	if p.HighDrive {
		f |= gpio.HighDrive
	}
	return gpio.Spec{Name: name, Chip: c.Chip, Offset: p.Offset, Flags: f}
}

func (c *Config) specs() []gpio.Spec {
	specs := c.Layout().Specs()
	if c.Wake.Enabled {
		p, s := c.WakeSpecs()
		specs = append(specs, p, s)
	}
	return specs
}

// Layout returns the matrix line specs. Missing bits get zero specs and are
// reported by Validate.
func (c *Config) Layout() gpio.Layout {
	l := gpio.Layout{
		Power:  c.spec("power", c.Pins.Power),
		Key:    c.spec("key", c.Pins.Key),
		Hys:    c.spec("hys", c.Pins.Hys),
		Strobe: c.spec("strobe", c.Pins.Strobe),
	}
	for i := range l.Bits {
		if i < len(c.Pins.Bits) {
			l.Bits[i] = c.spec(fmt.Sprintf("bit%d", i), c.Pins.Bits[i])
		}
	}
	return l
}

// WakeSpecs returns the wake sensor power and sense line specs.
func (c *Config) WakeSpecs() (power, sensor gpio.Spec) {
	return c.spec("wake-power", c.Wake.Power), c.spec("wake-sensor", c.Wake.Sensor)
}

// Matrix returns the scan timings.
func (c *Config) Matrix() (matrix.Config, error) {
	mode, err := matrix.ParsePowerMode(c.PowerMode)
	if err != nil {
		return matrix.Config{}, err
	}
	return matrix.Config{
		Relax:   time.Duration(c.MatrixRelaxUs) * time.Microsecond,
		Settle:  time.Duration(c.ADCReadSettleUs) * time.Microsecond,
		PowerUp: time.Duration(c.PowerUpMs) * time.Millisecond,
		Power:   mode,
	}, nil
}

// Intervals returns the per-state polling periods.
func (c *Config) Intervals() activity.Intervals {
	return activity.Intervals{
		Active: time.Duration(c.ActivePollingIntervalMs) * time.Millisecond,
		Idle:   time.Duration(c.IdlePollingIntervalMs) * time.Millisecond,
		Sleep:  time.Duration(c.SleepPollingIntervalMs) * time.Millisecond,
	}
}
