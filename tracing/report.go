package tracing

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/tritsim/core"
)

// WriteTable renders the last lastN records as a table. A lastN of zero
// renders every record.
func WriteTable(w io.Writer, records []core.TraceRecord, lastN int) error {
	if lastN > 0 && len(records) > lastN {
		records = records[len(records)-lastN:]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Cycle", "PC", "Opcode", "Stage", "Tier", "Stall", "Note"})

	for _, r := range records {
		stall := ""
		if r.Stall {
			stall = "*"
		}

		t.AppendRow(table.Row{r.Cycle, r.PC, r.Opcode, r.Stage, r.Tier, stall, r.Note})
	}

	t.Render()

	return nil
}

// OpcodeProfile is the cycle cost of one opcode over a trace.
type OpcodeProfile struct {
	Opcode  string
	Cycles  uint64
	Stalls  uint64
	Retired uint64
}

// Profile sums the cycles each opcode occupied, most expensive first.
// Cycles that belong to no instruction, such as refresh, are listed under
// "-".
func Profile(records []core.TraceRecord) []OpcodeProfile {
	byOp := make(map[string]*OpcodeProfile)

	for _, r := range records {
		name := r.Opcode
		if name == "" {
			name = "-"
		}

		p, ok := byOp[name]
		if !ok {
			p = &OpcodeProfile{Opcode: name}
			byOp[name] = p
		}

		p.Cycles++

		if r.Stall {
			p.Stalls++
		}

		if r.Stage == core.StageRetire {
			p.Retired++
		}
	}

	out := make([]OpcodeProfile, 0, len(byOp))
	for _, p := range byOp {
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Cycles != out[j].Cycles {
			return out[i].Cycles > out[j].Cycles
		}

		return out[i].Opcode < out[j].Opcode
	})

	return out
}

// WriteProfile renders a profile as a table.
func WriteProfile(w io.Writer, profile []OpcodeProfile) {
	var total uint64
	for _, p := range profile {
		total += p.Cycles
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Cycle profile")
	t.AppendHeader(table.Row{"Opcode", "Cycles", "Share", "Stalls"})

	for _, p := range profile {
		share := 0.0
		if total > 0 {
			share = 100 * float64(p.Cycles) / float64(total)
		}

		t.AppendRow(table.Row{p.Opcode, p.Cycles, fmt.Sprintf("%.1f%%", share), p.Stalls})
	}

	t.AppendFooter(table.Row{"total", total, "", ""})
	t.Render()
}
