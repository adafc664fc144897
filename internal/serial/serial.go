// Package serial mirrors key changes onto a serial line as plain text,
// one "DOWN r c" or "UP r c" line per change.
package serial

import (
	"fmt"
	"io"
	"sync"

	tarm "github.com/tarm/serial"
	"go.uber.org/zap"

	"github.com/sweeney/topre-kscan/internal/matrix"
)

// DefaultBaud is used when the configured baud rate is zero.
const DefaultBaud = 115200

// FormatLine renders one change as a newline-terminated line.
func FormatLine(c matrix.Change) string {
	verb := "UP"
	if c.Pressed {
		verb = "DOWN"
	}
	return fmt.Sprintf("%s %d %d\n", verb, c.Row, c.Col)
}

// Sink writes formatted changes to a port.
type Sink struct {
	mu  sync.Mutex
	w   io.WriteCloser
	log *zap.SugaredLogger
}

// NewSink wraps an already open writer.
func NewSink(w io.WriteCloser, log *zap.SugaredLogger) *Sink {
	return &Sink{w: w, log: log.Named("serial")}
}

// Open opens device at baud and returns a sink writing to it.
func Open(device string, baud int, log *zap.SugaredLogger) (*Sink, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := tarm.OpenPort(&tarm.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	s := NewSink(port, log)
	s.log.Infow("serial output enabled", "device", device, "baud", baud)
	return s, nil
}

// Write emits one change.
func (s *Sink) Write(c matrix.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, FormatLine(c)); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	return nil
}

// Close closes the underlying port.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}
