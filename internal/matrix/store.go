// Package matrix implements the capacitive matrix scan cycle and the store of
// last reported key states.
package matrix

import "fmt"

// Matrix geometry.
const (
	Rows  = 8
	Cols  = 8
	Cells = Rows * Cols
)

// Index returns the linear index of a cell.
func Index(row, col int) int {
	return row*Cols + col
}

// Change reports a cell whose pressed state differs from the previous sweep.
type Change struct {
	Row     int
	Col     int
	Pressed bool
}

// Index returns the linear index of the changed cell.
func (c Change) Index() int {
	return Index(c.Row, c.Col)
}

func (c Change) String() string {
	state := "released"
	if c.Pressed {
		state = "pressed"
	}
	return fmt.Sprintf("(%d,%d) %s", c.Row, c.Col, state)
}

// Readings is one raw sweep, indexed by Index.
type Readings [Cells]bool

// Store holds the last reported state of every cell. The zero value has every
// cell released. Not safe for concurrent use; the scan context owns it.
type Store struct {
	cells [Cells]bool
}

// Pressed returns the stored state of cell i.
func (s *Store) Pressed(i int) bool {
	return s.cells[i]
}

// Merge updates every cell that differs from read and returns those cells in
// row-major order.
func (s *Store) Merge(read *Readings) []Change {
	var changes []Change
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			i := Index(r, c)
			if s.cells[i] != read[i] {
				s.cells[i] = read[i]
				changes = append(changes, Change{Row: r, Col: c, Pressed: read[i]})
			}
		}
	}
	return changes
}

// Snapshot returns a copy of the stored states.
func (s *Store) Snapshot() Readings {
	return Readings(s.cells)
}

// Reset marks every cell released.
func (s *Store) Reset() {
	s.cells = [Cells]bool{}
}
