// Package bridge moves host binary words into the ternary domain and back
// through bounded FIFOs and fixed-latency conversion pipelines.
package bridge

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/simerr"
)

// FIFOStats counts the traffic through a FIFO.
type FIFOStats struct {
	Writes      uint64
	Reads       uint64
	Overflows   uint64
	Underflows  uint64
	MaxFill     int
	Utilization float64
}

// FIFO is a bounded first-in first-out queue. Pushing to a full FIFO or
// popping an empty one is a backpressure error, and the item is not lost.
type FIFO[T any] struct {
	buf   sim.Buffer
	stats FIFOStats

	samples uint64
	fillSum uint64
}

// NewFIFO creates a FIFO that holds at most depth items.
func NewFIFO[T any](name string, depth int) *FIFO[T] {
	if depth < 1 {
		panic("bridge: FIFO depth must be positive")
	}

	return &FIFO[T]{buf: sim.NewBuffer(name, depth)}
}

// Name returns the FIFO name.
func (f *FIFO[T]) Name() string {
	return f.buf.Name()
}

// Push appends v.
func (f *FIFO[T]) Push(v T) error {
	if !f.buf.CanPush() {
		f.stats.Overflows++
		return simerr.New(simerr.KindBackpressure, f.buf.Name()+".Push",
			"full at %d items", f.buf.Capacity())
	}

	f.buf.Push(v)
	f.stats.Writes++
	f.stats.MaxFill = max(f.stats.MaxFill, f.buf.Size())

	return nil
}

// Pop removes the oldest item.
func (f *FIFO[T]) Pop() (T, error) {
	var zero T

	if f.buf.Size() == 0 {
		f.stats.Underflows++
		return zero, simerr.New(simerr.KindBackpressure, f.buf.Name()+".Pop", "empty")
	}

	f.stats.Reads++

	return f.buf.Pop().(T), nil
}

// Peek returns the oldest item without removing it.
func (f *FIFO[T]) Peek() (T, bool) {
	var zero T

	if f.buf.Size() == 0 {
		return zero, false
	}

	return f.buf.Peek().(T), true
}

// Len is the number of queued items.
func (f *FIFO[T]) Len() int {
	return f.buf.Size()
}

// Depth is the capacity.
func (f *FIFO[T]) Depth() int {
	return f.buf.Capacity()
}

// Full reports whether a Push would fail.
func (f *FIFO[T]) Full() bool {
	return !f.buf.CanPush()
}

// Empty reports whether a Pop would fail.
func (f *FIFO[T]) Empty() bool {
	return f.buf.Size() == 0
}

// Sample records the current fill level for the utilization statistic.
func (f *FIFO[T]) Sample() {
	f.samples++
	f.fillSum += uint64(f.buf.Size())
}

// Stats returns the counters. Utilization is the mean sampled fill level
// over the depth.
func (f *FIFO[T]) Stats() FIFOStats {
	st := f.stats
	if f.samples > 0 {
		st.Utilization = float64(f.fillSum) / float64(f.samples) / float64(f.buf.Capacity())
	}

	return st
}

// Reset empties the FIFO and clears its statistics.
func (f *FIFO[T]) Reset() {
	f.buf.Clear()
	f.stats = FIFOStats{}
	f.samples = 0
	f.fillSum = 0
}
