//go:build !tinygo

package irq

import (
	"runtime"
	"sync"
)

// State is a placeholder for interrupt state on regular Go.
type State uintptr

// User space cannot mask interrupts. The closest approximation keeps the
// goroutine on one OS thread and serializes sections process-wide.
var section sync.Mutex

// Disable pins the calling goroutine to its thread and enters the section.
func Disable() State {
	runtime.LockOSThread()
	section.Lock()
	return 0
}

// Restore leaves the section entered by Disable.
func Restore(state State) {
	section.Unlock()
	runtime.UnlockOSThread()
}
