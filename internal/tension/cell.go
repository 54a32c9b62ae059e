// Package tension holds the single process-wide tension value.
//
// Reports arrive from the inference receive loop at arbitrary frequency and
// are read by the animation step every frame. The value lives in one atomic
// word, so a read always observes the most recent complete write and no lock
// is shared between the two sides.
package tension

import (
	"math"
	"sync/atomic"
)

// Default is the tension before any report arrives.
const Default = 0.5

// Cell is a single-slot, last-write-wins tension value in [0, 1].
type Cell struct {
	bits    atomic.Uint64
	reports atomic.Uint64
}

// NewCell returns a cell holding initial, clamped.
func NewCell(initial float64) *Cell {
	c := &Cell{}
	if math.IsNaN(initial) {
		initial = Default
	}
	c.bits.Store(math.Float64bits(Clamp(initial)))
	return c
}

// Report clamps raw into [0, 1] and overwrites the stored value. NaN is
// treated as malformed and leaves the previous value in place. It reports
// whether the value was accepted.
func (c *Cell) Report(raw float64) bool {
	if math.IsNaN(raw) {
		return false
	}
	c.bits.Store(math.Float64bits(Clamp(raw)))
	c.reports.Add(1)
	return true
}

// Load returns the current tension.
func (c *Cell) Load() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Reports returns how many reports have been accepted.
func (c *Cell) Reports() uint64 {
	return c.reports.Load()
}

// Clamp limits v to [0, 1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
