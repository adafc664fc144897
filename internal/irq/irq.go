// Package irq provides the critical section wrapped around timing-sensitive
// line accesses.
package irq

// Do runs fn with interrupts disabled. The previous state is restored on
// every exit path, including a panic in fn.
func Do(fn func() error) error {
	state := Disable()
	defer Restore(state)
	return fn()
}
