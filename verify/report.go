package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/tritsim/core"
)

// machineCyclesPerStep bounds the machine run of GenerateReport relative
// to the functional step budget. It covers the slowest instruction behind
// a parking tier access.
const machineCyclesPerStep = 128

// VerificationReport represents a complete verification report
type VerificationReport struct {
	Program        string
	Arch           ArchInfo
	LintIssues     []Issue
	StructIssues   []Issue
	DataflowIssues []Issue

	SimulationErr error
	SimulationOK  bool
	Steps         int

	MachineErr    error
	MachineResult core.Result

	// Mismatches lists every output word or register on which the
	// functional simulator and the machine disagree.
	Mismatches []string
}

// Agreement reports whether both runs finished and produced the same
// state.
func (r *VerificationReport) Agreement() bool {
	return r.SimulationOK && r.MachineErr == nil &&
		r.MachineResult.Reason == core.StopHalted && len(r.Mismatches) == 0
}

// GenerateReport lints the program, runs it on the functional simulator
// and on a machine of the same shape, and compares the two.
func GenerateReport(p core.Program, arch ArchInfo, maxSteps int) *VerificationReport {
	report := &VerificationReport{
		Program: p.Name,
		Arch:    arch,
	}

	report.LintIssues = RunLint(p, arch)

	for _, issue := range report.LintIssues {
		if issue.Type == IssueStruct {
			report.StructIssues = append(report.StructIssues, issue)
		} else {
			report.DataflowIssues = append(report.DataflowIssues, issue)
		}
	}

	fs := NewFunctionalSimulator(p, arch)
	report.SimulationErr = fs.Run(maxSteps)
	report.SimulationOK = report.SimulationErr == nil
	report.Steps = fs.Steps()

	m, err := core.MakeBuilder().
		WithHotRegisters(arch.HotRegisters).
		WithWorkingRegisters(arch.WorkingRegisters).
		WithParkingRegisters(arch.ParkingRegisters).
		BuildMachine()
	if err != nil {
		report.MachineErr = err
		return report
	}

	if err = m.LoadProgram(p); err != nil {
		report.MachineErr = err
		return report
	}

	report.MachineResult, report.MachineErr = m.Run(context.Background(),
		uint64(maxSteps)*machineCyclesPerStep)

	if report.SimulationOK && report.MachineErr == nil {
		report.Mismatches = Compare(fs, m)
	}

	return report
}

// Compare lists the differences between a finished functional run and a
// finished machine run: the output streams and every architectural
// register.
func Compare(fs *FunctionalSimulator, m *core.Machine) []string {
	var out []string

	want := fs.Output()
	got := m.DrainOutput()

	if len(want) != len(got) {
		out = append(out, fmt.Sprintf("output: %d words functional, %d words machine",
			len(want), len(got)))
	}

	for i := range min(len(want), len(got)) {
		if want[i].Cmp(got[i].Big()) != 0 {
			out = append(out, fmt.Sprintf("output[%d]: functional %s, machine %s",
				i, want[i], got[i].Big()))
		}
	}

	for _, name := range fs.arch.registerNames() {
		w, _ := fs.Register(name)

		g, err := m.Register(name)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if w.Cmp(g.Big()) != 0 {
			out = append(out, fmt.Sprintf("%s: functional %s, machine %s",
				name, w, g.Big()))
		}
	}

	return out
}

// registerNames lists every architectural register, hot tier first.
func (a ArchInfo) registerNames() []string {
	names := []string{"ACC", "TMP", "A", "B"}[:min(a.HotRegisters, 4)]

	for i := range a.WorkingRegisters {
		names = append(names, fmt.Sprintf("R%d", i))
	}

	for i := range a.ParkingRegisters {
		names = append(names, fmt.Sprintf("P%d", i))
	}

	return names
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "PROGRAM VERIFICATION REPORT: %s\n", r.Program)
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Registers: %d hot, %d working, %d parking\n",
		r.Arch.HotRegisters, r.Arch.WorkingRegisters, r.Arch.ParkingRegisters)

	// STAGE 1: LINT
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 1: STATIC LINT CHECKS")
	fmt.Fprintln(w, separator)

	if len(r.LintIssues) == 0 {
		fmt.Fprintln(w, "✓ No lint issues found!")
	} else {
		fmt.Fprintf(w, "⚠ Found %d lint issues:\n\n", len(r.LintIssues))
		writeIssues(w, r.LintIssues)
	}

	// STAGE 2: FUNCTIONAL SIMULATION
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 2: FUNCTIONAL SIMULATION")
	fmt.Fprintln(w, separator)

	if r.SimulationOK {
		fmt.Fprintf(w, "✓ Halted after %d instructions\n", r.Steps)
	} else {
		fmt.Fprintf(w, "⚠ Simulation error: %v\n", r.SimulationErr)
	}

	// STAGE 3: MACHINE
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 3: CYCLE-LEVEL MACHINE")
	fmt.Fprintln(w, separator)

	switch {
	case r.MachineErr != nil:
		fmt.Fprintf(w, "⚠ Machine error: %v\n", r.MachineErr)
	case r.MachineResult.Reason != core.StopHalted:
		fmt.Fprintf(w, "⚠ Machine stopped: %s after %d cycles\n",
			r.MachineResult.Reason, r.MachineResult.Cycles)
	default:
		fmt.Fprintf(w, "✓ Halted after %d cycles, %d retired\n",
			r.MachineResult.Cycles, r.MachineResult.Retired)
	}

	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "  mismatch %s\n", m)
	}

	// SUMMARY
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "VERIFICATION SUMMARY")
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "Lint Result: %d issues detected (%d STRUCT, %d DATAFLOW)\n",
		len(r.LintIssues), len(r.StructIssues), len(r.DataflowIssues))

	if r.Agreement() {
		fmt.Fprintln(w, "✓ PROGRAM PASSED ALL CHECKS")
	} else {
		fmt.Fprintln(w, "⚠ FUNCTIONAL AND MACHINE RUNS DO NOT AGREE")
	}

	fmt.Fprintln(w)
}

func writeIssues(w io.Writer, issues []Issue) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "PC", "Line", "Opcode", "Message"})

	for _, issue := range issues {
		pc := "-"
		if issue.PC >= 0 {
			pc = fmt.Sprint(issue.PC)
		}

		t.AppendRow(table.Row{issue.Type, pc, issue.Line, issue.Opcode, issue.Message})
	}

	t.Render()
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)

	return nil
}
