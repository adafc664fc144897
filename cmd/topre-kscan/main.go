// Command topre-kscan scans a Topre capacitive keyboard matrix and publishes
// key changes to MQTT and an optional serial line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/topre-kscan/internal/activity"
	"github.com/sweeney/topre-kscan/internal/config"
	"github.com/sweeney/topre-kscan/internal/gpio"
	"github.com/sweeney/topre-kscan/internal/kscan"
	"github.com/sweeney/topre-kscan/internal/matrix"
	"github.com/sweeney/topre-kscan/internal/mqtt"
	"github.com/sweeney/topre-kscan/internal/serial"
	"github.com/sweeney/topre-kscan/internal/status"
	"github.com/sweeney/topre-kscan/internal/wake"
	"github.com/sweeney/topre-kscan/internal/web"
)

const (
	// eventQueue bounds the changes waiting between the scan goroutine and the loop.
	eventQueue      = 256
	shutdownTimeout = 3 * time.Second
)

type options struct {
	configPath string
	backend    string
	scanOnce   bool
	httpAddr   string
	broker     string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (defaults and KSCAN_* env apply without one)")
	flag.StringVar(&opts.backend, "backend", "", "GPIO backend override: chardev, periph, rpio or fake")
	flag.BoolVar(&opts.scanOnce, "scan-once", false, "Scan the matrix once, print the grid and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.StringVar(&opts.httpAddr, "http", "", `HTTP status address override ("off" disables)`)
	flag.StringVar(&opts.broker, "broker", "", `MQTT broker override ("off" disables)`)

	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(opts, logger); err != nil {
		logger.Fatalw("fatal", "error", err)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func applyOverrides(cfg *config.Config, opts options) {
	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	switch opts.httpAddr {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = opts.httpAddr
	}
	switch opts.broker {
	case "":
	case "off":
		cfg.MQTT.Broker = ""
	default:
		cfg.MQTT.Broker = opts.broker
	}
}

func run(opts options, logger *zap.SugaredLogger) error {
	cfg, err := config.Load(opts.configPath, logger)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	opener, err := gpio.OpenBackend(cfg.Backend)
	if err != nil {
		return err
	}
	defer opener.Close()

	lines, err := gpio.OpenSet(opener, cfg.Layout())
	if err != nil {
		return fmt.Errorf("open matrix lines: %w", err)
	}
	defer lines.Close()

	mc, err := cfg.Matrix()
	if err != nil {
		return err
	}
	dev, err := kscan.New(lines, mc, cfg.Intervals(), logger)
	if err != nil {
		return err
	}
	if err := dev.Init(); err != nil {
		return err
	}

	if opts.scanOnce {
		if _, err := dev.ScanOnce(); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		printGrid(os.Stdout, dev.Pressed())
		return nil
	}

	events := make(chan mqtt.KeyEvent, eventQueue)
	if err := dev.Configure(func(row, col int, pressed bool) {
		ev := mqtt.KeyEvent{Timestamp: time.Now(), Change: matrix.Change{Row: row, Col: col, Pressed: pressed}}
		select {
		case events <- ev:
		default:
			logger.Warnw("event queue full, dropping change", "change", ev.Change)
		}
	}); err != nil {
		return err
	}

	commands := make(chan string, 4)
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		rp, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			OnActivity: func(payload string) {
				select {
				case commands <- payload:
				default:
				}
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer rp.Close()
		publisher, mqttStatus = rp, rp
	}

	var sink changeSink
	if cfg.Serial.Device != "" {
		s, err := serial.Open(cfg.Serial.Device, cfg.Serial.Baud, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		sink = s
	}

	wakeCh := make(chan struct{}, 1)
	if cfg.Wake.Enabled {
		power, sensor := cfg.WakeSpecs()
		ws, err := wake.Open(opener, power, sensor, func() {
			select {
			case wakeCh <- struct{}{}:
			default:
			}
		}, logger)
		if err != nil {
			return err
		}
		defer ws.Close()
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	tracker.Refresh(dev)

	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Warnw("failed to publish startup event", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := dev.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	var srv *web.Server
	if cfg.HTTP != "" {
		srv = web.New(cfg.HTTP, tracker)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
			return nil
		})
		logger.Infow("http status server listening", "addr", cfg.HTTP)
	}

	if err := dev.Enable(); err != nil {
		return err
	}
	logger.Infow("started",
		"backend", cfg.Backend,
		"power_mode", cfg.PowerMode,
		"intervals", cfg.Intervals(),
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		dev:        dev,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		sink:       sink,
		tracker:    tracker,
		monitor:    activity.NewMonitor(cfg.IdleTimeout, cfg.SleepTimeout, time.Now()),
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
		log:        logger,
	}
	loopErr := l.run(events, commands, wakeCh, ticker.C, sigCh)

	if err := dev.Disable(); err != nil {
		logger.Warnw("disable", "error", err)
	}
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warnw("http shutdown", "error", err)
		}
		scancel()
	}
	cancel()
	return errors.Join(loopErr, g.Wait())
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Backend:        cfg.Backend,
		PowerMode:      cfg.PowerMode,
		ActiveMs:       int64(cfg.ActivePollingIntervalMs),
		IdleMs:         int64(cfg.IdlePollingIntervalMs),
		SleepMs:        int64(cfg.SleepPollingIntervalMs),
		IdleTimeoutMs:  cfg.IdleTimeout.Milliseconds(),
		SleepTimeoutMs: cfg.SleepTimeout.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP,
		SerialDevice:   cfg.Serial.Device,
	}
}

// printGrid writes the 8x8 matrix, rows down and columns across.
func printGrid(w io.Writer, r matrix.Readings) {
	fmt.Fprint(w, "   ")
	for c := 0; c < matrix.Cols; c++ {
		fmt.Fprintf(w, " %d", c)
	}
	fmt.Fprintln(w)
	for row := 0; row < matrix.Rows; row++ {
		fmt.Fprintf(w, "%d: ", row)
		for c := 0; c < matrix.Cols; c++ {
			cell := "."
			if r[matrix.Index(row, c)] {
				cell = "X"
			}
			fmt.Fprintf(w, " %s", cell)
		}
		fmt.Fprintln(w)
	}
}
