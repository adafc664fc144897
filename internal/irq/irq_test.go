package irq

import (
	"errors"
	"testing"
	"time"
)

func TestDoReturnsError(t *testing.T) {
	want := errors.New("read fault")
	if err := Do(func() error { return want }); err != want {
		t.Errorf("got %v, want %v", err, want)
	}

	// The section must have been released for a second call to proceed.
	done := make(chan struct{})
	go func() {
		Do(func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("section not released after error")
	}
}

func TestDoRestoresOnPanic(t *testing.T) {
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		Do(func() error { panic("boom") })
	}()

	done := make(chan struct{})
	go func() {
		Do(func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("section not released after panic")
	}
}

func TestDoSerializes(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	go Do(func() error {
		close(entered)
		<-release
		return nil
	})
	<-entered

	second := make(chan struct{})
	go func() {
		Do(func() error { return nil })
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second section entered while first was held")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second section never entered")
	}
}
