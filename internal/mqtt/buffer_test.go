package mqtt

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(4, zaptest.NewLogger(t).Sugar())
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferOrder(t *testing.T) {
	rb := newRingBuffer(8, zaptest.NewLogger(t).Sugar())
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "kb/events", payload: []byte{byte(i)}})
	}
	if rb.len() != 5 {
		t.Fatalf("len = %d, want 5", rb.len())
	}

	got := rb.drainAll()
	for i, m := range got {
		if m.payload[0] != byte(i) {
			t.Errorf("item %d has payload %d", i, m.payload[0])
		}
	}
	if rb.len() != 0 || rb.drainAll() != nil {
		t.Error("buffer not empty after drain")
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rb := newRingBuffer(3, zap.New(core).Sugar())
	for i := 0; i < 7; i++ {
		rb.push(bufferedMsg{payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, m := range got {
		if want := byte(i + 4); m.payload[0] != want {
			t.Errorf("item %d: payload %d, want %d", i, m.payload[0], want)
		}
	}
	if n := logs.FilterMessage("buffer full, dropping oldest").Len(); n != 1 {
		t.Errorf("expected one overflow warning, got %d", n)
	}
}

func TestRingBufferReuseAfterWrap(t *testing.T) {
	rb := newRingBuffer(3, zaptest.NewLogger(t).Sugar())
	for round := 0; round < 3; round++ {
		for i := 0; i < 5; i++ {
			rb.push(bufferedMsg{payload: []byte{byte(round*10 + i)}})
		}
		got := rb.drainAll()
		if len(got) != 3 || got[0].payload[0] != byte(round*10+2) {
			t.Fatalf("round %d: unexpected drain %v", round, got)
		}
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2, zaptest.NewLogger(t).Sugar())
	rb.push(bufferedMsg{topic: "kb/system", payload: []byte("x"), qos: 1, retained: true})

	m := rb.drainAll()[0]
	if m.topic != "kb/system" || string(m.payload) != "x" || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := newRingBuffer(0, zaptest.NewLogger(t).Sugar())
	rb.push(bufferedMsg{topic: "t"})
	if rb.len() != 0 || rb.drainAll() != nil {
		t.Error("zero-capacity buffer should hold nothing")
	}
}
