package gpio

import (
	"fmt"
	"sync"
)

// OpKind identifies a recorded line operation.
type OpKind int

const (
	OpConfigure OpKind = iota
	OpSet
	OpGet
)

// Op is one operation recorded by the fake backend.
type Op struct {
	Line  string
	Kind  OpKind
	Mode  Mode // OpConfigure only
	Value bool // written value for OpSet, returned value for OpGet
}

func (o Op) String() string {
	switch o.Kind {
	case OpConfigure:
		return fmt.Sprintf("%s=%s", o.Line, o.Mode)
	case OpSet:
		return fmt.Sprintf("%s<-%v", o.Line, o.Value)
	}
	return fmt.Sprintf("%s->%v", o.Line, o.Value)
}

// Fake is an in-memory backend that records every line operation.
// It is safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	lines  map[string]*FakeLine
	ops    []Op
	Closed bool

	// OpenError, if set, is returned by Open for the named line.
	OpenError map[string]error
}

// NewFake creates an empty fake backend.
func NewFake() *Fake {
	return &Fake{lines: make(map[string]*FakeLine)}
}

// Open creates (or returns) the fake line named spec.Name.
func (f *Fake) Open(spec Spec) (Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.OpenError[spec.Name]; err != nil {
		return nil, err
	}
	if l, ok := f.lines[spec.Name]; ok {
		return l, nil
	}
	l := &FakeLine{fake: f, spec: spec}
	f.lines[spec.Name] = l
	return l, nil
}

// OpenEdge opens a line whose handler can be fired with FakeLine.Trigger.
func (f *Fake) OpenEdge(spec Spec, handler func(active bool)) (Line, error) {
	l, err := f.Open(spec)
	if err != nil {
		return nil, err
	}
	fl := l.(*FakeLine)
	f.mu.Lock()
	fl.edge = handler
	f.mu.Unlock()
	return fl, nil
}

// Close marks the backend closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Line returns the fake line with the given name, or nil.
func (f *Fake) Line(name string) *FakeLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines[name]
}

// Ops returns a copy of the recorded operations.
func (f *Fake) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Op, len(f.ops))
	copy(out, f.ops)
	return out
}

// ResetOps clears the operation log.
func (f *Fake) ResetOps() {
	f.mu.Lock()
	f.ops = nil
	f.mu.Unlock()
}

// FakeLine is a line of the fake backend.
type FakeLine struct {
	fake   *Fake
	spec   Spec
	mode   Mode
	value  bool
	closed bool
	edge   func(bool)

	// Sense, if set, supplies the value returned by Get.
	// It is called with the backend lock released.
	Sense func() (bool, error)

	// SetError, GetError and ConfigureError, if set, fail the matching call.
	SetError       error
	GetError       error
	ConfigureError error
}

// Configure records the mode change.
func (l *FakeLine) Configure(m Mode) error {
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	if l.ConfigureError != nil {
		return l.ConfigureError
	}
	l.mode = m
	switch m {
	case OutputActive:
		l.value = true
	case OutputInactive:
		l.value = false
	}
	l.fake.ops = append(l.fake.ops, Op{Line: l.spec.Name, Kind: OpConfigure, Mode: m})
	return nil
}

// Set records the written value.
func (l *FakeLine) Set(active bool) error {
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	if l.SetError != nil {
		return l.SetError
	}
	l.value = active
	l.fake.ops = append(l.fake.ops, Op{Line: l.spec.Name, Kind: OpSet, Value: active})
	return nil
}

// Get returns the Sense value, or the last written value.
func (l *FakeLine) Get() (bool, error) {
	l.fake.mu.Lock()
	if l.GetError != nil {
		err := l.GetError
		l.fake.mu.Unlock()
		return false, err
	}
	sense := l.Sense
	v := l.value
	l.fake.mu.Unlock()

	if sense != nil {
		var err error
		v, err = sense()
		if err != nil {
			return false, err
		}
	}

	l.fake.mu.Lock()
	l.fake.ops = append(l.fake.ops, Op{Line: l.spec.Name, Kind: OpGet, Value: v})
	l.fake.mu.Unlock()
	return v, nil
}

// Close marks the line closed.
func (l *FakeLine) Close() error {
	l.fake.mu.Lock()
	l.closed = true
	l.fake.mu.Unlock()
	return nil
}

// Trigger fires the edge handler registered through OpenEdge.
func (l *FakeLine) Trigger(active bool) {
	l.fake.mu.Lock()
	l.value = active
	h := l.edge
	l.fake.mu.Unlock()
	if h != nil {
		h(active)
	}
}

// Value returns the current logical level without recording an operation.
func (l *FakeLine) Value() bool {
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	return l.value
}

// Mode returns the last configured mode.
func (l *FakeLine) Mode() Mode {
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	return l.mode
}

// Closed reports whether Close was called.
func (l *FakeLine) Closed() bool {
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	return l.closed
}

// Spec returns the spec the line was opened with.
func (l *FakeLine) Spec() Spec {
	return l.spec
}
