package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	LevelTrace slog.Level = slog.LevelInfo + 1
)

func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

func wordCell(m *Machine, name string) string {
	w, err := m.Register(name)
	if err != nil {
		return "-"
	}

	v, ok := w.Int64()
	if !ok {
		return w.String()
	}

	return fmt.Sprintf("%d (%s)", v, w)
}

// RenderState draws the registers, flags and sequencer position as tables.
func RenderState(m *Machine) string {
	s := &m.state

	regTable := table.NewWriter()
	regTable.SetTitle("Registers")
	regTable.AppendHeader(table.Row{"Tier", "Register", "Value", "Live"})

	for t := TierHot; t <= TierParking; t++ {
		for i, slot := range s.regs.tiers[t-1] {
			if t != TierHot && !slot.inUse {
				continue
			}

			name := s.regs.name(slotRef{t, i})
			regTable.AppendRow(table.Row{t, name, wordCell(m, name), slot.inUse})
		}
	}

	virtual := make([]string, 0, len(s.regs.virtual))
	for v := range s.regs.virtual {
		virtual = append(virtual, v)
	}
	sort.Strings(virtual)

	for _, v := range virtual {
		ref := s.regs.virtual[v]
		regTable.AppendRow(table.Row{ref.tier, v + " -> " + s.regs.name(ref),
			wordCell(m, v), true})
	}

	ctlTable := table.NewWriter()
	ctlTable.SetTitle("Control")
	ctlTable.AppendHeader(table.Row{"PC", "Cycle", "Stage", "Sign", "Carry",
		"Overflow", "Halted", "Call depth", "Pending IRQ"})
	ctlTable.AppendRow(table.Row{
		s.PC, s.Cycle, s.Stage, s.Flags.Sign, s.Flags.Carry, s.Flags.Overflow,
		s.Halted, len(s.callStack), len(s.interrupts.queue),
	})

	return regTable.Render() + "\n" + ctlTable.Render()
}

// RenderStats draws the counters as a table.
func RenderStats(st Stats) string {
	t := table.NewWriter()
	t.SetTitle("Execution statistics")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Cycles", st.Cycles},
		{"Retired", st.Retired},
		{"CPI", fmt.Sprintf("%.2f", st.CPI())},
		{"Stall cycles", st.StallCycles},
		{"Refresh cycles", st.RefreshCycles},
		{"Branches", st.Branches},
		{"Mispredictions", st.Mispredictions},
		{"Predictor accuracy", fmt.Sprintf("%.1f%%", 100*st.PredictorAccuracy())},
		{"Interrupts taken", st.InterruptsTaken},
		{"Interrupts dropped", st.InterruptsDropped + st.InterruptOverflows},
		{"DMA completed", st.DMACompleted},
		{"Output words", st.OutputWords},
		{"Hot accesses", st.TierAccesses[0]},
		{"Working accesses", st.TierAccesses[1]},
		{"Parking accesses", st.TierAccesses[2]},
	})

	return t.Render()
}

// LogState writes the control state at debug level.
func LogState(m *Machine) {
	s := &m.state
	slog.Debug("core state",
		"PC", s.PC,
		"Cycle", s.Cycle,
		"Stage", s.Stage,
		"Sign", int(s.Flags.Sign),
		"Carry", int(s.Flags.Carry),
		"Halted", s.Halted,
	)
}
