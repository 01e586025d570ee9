package bridge

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

type stage[T any] struct {
	value T
	age   int
}

// Stats counts the words that crossed the bridge.
type Stats struct {
	Cycles    uint64
	Sent      uint64
	Converted uint64
	Delivered uint64
	Accepted  uint64
	Received  uint64
	Stalls    uint64
	Ingress   FIFOStats
	Ready     FIFOStats
	Egress    FIFOStats
}

// Bridge connects a binary host to a ternary device. Host words enter the
// ingress FIFO, spend the conversion latency in the binary-to-ternary
// pipeline, and wait in the ready FIFO for the device. Device results take
// the reverse path into the egress FIFO.
type Bridge struct {
	latency int

	ingress *FIFO[int64]
	ready   *FIFO[trit.Word]
	egress  *FIFO[int64]

	toTernary []stage[int64]
	toBinary  []stage[trit.Word]

	stats Stats
}

// Send queues a host word. It returns a backpressure error when the
// ingress FIFO is full.
func (b *Bridge) Send(v int64) error {
	if err := b.ingress.Push(v); err != nil {
		return err
	}

	b.stats.Sent++

	return nil
}

// Deliver hands the next converted word to the device.
func (b *Bridge) Deliver() (trit.Word, error) {
	w, err := b.ready.Pop()
	if err != nil {
		return w, err
	}

	b.stats.Delivered++

	return w, nil
}

// Pending is the number of converted words waiting for the device.
func (b *Bridge) Pending() int {
	return b.ready.Len()
}

// Accept takes a result word from the device. The word must fit in 64
// bits, and the return path must have room for it.
func (b *Bridge) Accept(w trit.Word) error {
	if _, err := ToBinary(w); err != nil {
		return err
	}

	if len(b.toBinary)+b.egress.Len() >= b.egress.Depth() {
		b.stats.Egress.Overflows++
		return simerr.New(simerr.KindBackpressure, "bridge.Accept",
			"return path full at %d words", b.egress.Depth())
	}

	b.toBinary = append(b.toBinary, stage[trit.Word]{value: w})
	b.stats.Accepted++

	return nil
}

// Receive returns the next host-bound result.
func (b *Bridge) Receive() (int64, error) {
	v, err := b.egress.Pop()
	if err != nil {
		return 0, err
	}

	b.stats.Received++

	return v, nil
}

// Step advances both conversion pipelines by one cycle. A word pulled from
// the ingress FIFO during Step n reaches the ready FIFO at Step n+latency.
// The ingress FIFO is drained only while the ready FIFO has room for every
// word in flight.
func (b *Bridge) Step() {
	b.stats.Cycles++

	b.toTernary = advance(b.toTernary, b.latency, func(v int64) bool {
		if b.ready.Full() {
			b.stats.Stalls++
			return false
		}

		_ = b.ready.Push(ToTernary(v))
		b.stats.Converted++

		return true
	})

	// Words in flight count against the ready FIFO, so a device that stops
	// taking words backs the host up into the ingress FIFO.
	if !b.ingress.Empty() {
		if len(b.toTernary)+b.ready.Len() < b.ready.Depth() {
			v, _ := b.ingress.Pop()
			b.toTernary = append(b.toTernary, stage[int64]{value: v})
		} else {
			b.stats.Stalls++
		}
	}

	b.toBinary = advance(b.toBinary, b.latency, func(w trit.Word) bool {
		if b.egress.Full() {
			b.stats.Stalls++
			return false
		}

		v, _ := ToBinary(w)
		_ = b.egress.Push(v)

		return true
	})

	b.ingress.Sample()
	b.ready.Sample()
	b.egress.Sample()
}

// advance ages every stage and hands the finished ones to done in order.
// A stage stays in the pipeline when done refuses it, and so does every
// stage behind it.
func advance[T any](p []stage[T], latency int, done func(T) bool) []stage[T] {
	out := p[:0]
	blocked := false

	for _, s := range p {
		s.age++
		if s.age >= latency && !blocked && done(s.value) {
			continue
		}

		if s.age >= latency {
			blocked = true
		}

		out = append(out, s)
	}

	return out
}

// Idle reports whether no word is anywhere in the bridge.
func (b *Bridge) Idle() bool {
	return b.ingress.Empty() && b.ready.Empty() && b.egress.Empty() &&
		len(b.toTernary) == 0 && len(b.toBinary) == 0
}

// Reset drops every word and clears the statistics.
func (b *Bridge) Reset() {
	b.ingress.Reset()
	b.ready.Reset()
	b.egress.Reset()
	b.toTernary = nil
	b.toBinary = nil
	b.stats = Stats{}
}

// Stats returns the counters.
func (b *Bridge) Stats() Stats {
	st := b.stats
	st.Ingress = b.ingress.Stats()
	st.Ready = b.ready.Stats()

	egressOverflows := st.Egress.Overflows
	st.Egress = b.egress.Stats()
	st.Egress.Overflows += egressOverflows

	return st
}

// RenderStats draws the bridge counters as a table.
func RenderStats(st Stats) string {
	t := table.NewWriter()
	t.SetTitle("Bridge")
	t.AppendHeader(table.Row{"FIFO", "Writes", "Reads", "Overflows",
		"Underflows", "Max fill", "Utilization"})

	for _, row := range []struct {
		name string
		st   FIFOStats
	}{
		{"ingress", st.Ingress},
		{"ready", st.Ready},
		{"egress", st.Egress},
	} {
		t.AppendRow(table.Row{row.name, row.st.Writes, row.st.Reads,
			row.st.Overflows, row.st.Underflows, row.st.MaxFill,
			fmt.Sprintf("%.1f%%", 100*row.st.Utilization)})
	}

	t.AppendFooter(table.Row{"cycles", st.Cycles, "sent", st.Sent,
		"received", st.Received, fmt.Sprintf("stalls %d", st.Stalls)})

	return t.Render()
}
