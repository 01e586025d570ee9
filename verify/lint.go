package verify

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sarchlab/tritsim/core"
)

// RunLint performs static lint checks on a program.
// STRUCT issues are instructions the machine would fault on when it fetched
// them. DATAFLOW issues are virtual registers read before any instruction
// writes them, in program order.
// Returns a list of issues found, or empty list if no issues.
func RunLint(p core.Program, arch ArchInfo) []Issue {
	var issues []Issue

	stops := false
	written := make(map[string]bool)

	for pc, inst := range p.Instructions {
		report := func(t IssueType, details map[string]any, format string, args ...any) {
			issues = append(issues, Issue{
				Type:    t,
				PC:      pc,
				Line:    inst.Line,
				Opcode:  inst.Opcode,
				Message: fmt.Sprintf(format, args...),
				Details: details,
			})
		}

		info, err := core.LookupOpcode(inst.Opcode)
		if err != nil {
			report(IssueStruct, nil, "Unknown opcode %q", inst.Opcode)
			continue
		}

		if info.Name == "HALT" || info.Name == "RET" {
			stops = true
		}

		argc := len(inst.Operands)
		if argc < info.MinOperands || argc > info.MaxOperands ||
			(info.Name == "ADD" && argc == 1) {
			report(IssueStruct, map[string]any{"min": info.MinOperands, "max": info.MaxOperands},
				"%s takes %d to %d operands, got %d",
				info.Name, info.MinOperands, info.MaxOperands, argc)

			continue
		}

		for idx, tok := range inst.Operands {
			for _, msg := range checkOperand(p, arch, info, idx, tok) {
				report(IssueStruct, map[string]any{"operand": idx}, "%s", msg)
			}

			if !core.IsVirtualRegister(tok) {
				continue
			}

			if readsOperand(info, idx) && !written[tok] {
				report(IssueDataflow, map[string]any{"register": tok},
					"%s is read before any instruction writes it", tok)
			}
		}

		for idx, tok := range inst.Operands {
			if core.IsVirtualRegister(tok) && writesOperand(info, idx) {
				written[tok] = true
			}
		}

		if info.Name == "DMA" {
			for _, msg := range checkDMA(arch, inst.Operands) {
				report(IssueStruct, nil, "%s", msg)
			}
		}
	}

	for _, vector := range slices.Sorted(maps.Keys(p.Vectors)) {
		addr := p.Vectors[vector]
		if addr < 0 || addr >= p.Len() {
			issues = append(issues, Issue{
				Type:    IssueStruct,
				PC:      -1,
				Message: fmt.Sprintf("Vector %d points to %d, outside the program", vector, addr),
				Details: map[string]any{"vector": vector, "target": addr},
			})
		}
	}

	if !stops {
		issues = append(issues, Issue{
			Type:    IssueStruct,
			PC:      -1,
			Message: "Program has no HALT or RET and can only stop by running off its end",
		})
	}

	return issues
}

// checkOperand returns the problems with one operand.
func checkOperand(p core.Program, arch ArchInfo, info *core.OpInfo, idx int, tok string) []string {
	switch info.OperandKind(idx) {
	case core.OperandTarget:
		addr, err := p.ResolveTarget(tok)
		if err != nil {
			return []string{fmt.Sprintf("Unknown branch target %q", tok)}
		}

		if addr < 0 || addr >= p.Len() {
			return []string{fmt.Sprintf("Branch target %d is outside the %d-instruction program",
				addr, p.Len())}
		}
	case core.OperandImmediate:
		if _, err := core.ParseImmediate(tok); err != nil {
			return []string{fmt.Sprintf("Bad immediate %q", tok)}
		}
	case core.OperandRegister:
		if core.LooksImmediate(tok) {
			return []string{fmt.Sprintf("%s operand %d must be a register, got %q",
				info.Name, idx, tok)}
		}

		return checkRegister(arch, info, idx, tok)
	default:
		if core.LooksImmediate(tok) {
			if _, err := core.ParseImmediate(tok); err != nil {
				return []string{fmt.Sprintf("Bad immediate %q", tok)}
			}

			return nil
		}

		return checkRegister(arch, info, idx, tok)
	}

	return nil
}

func checkRegister(arch ArchInfo, info *core.OpInfo, idx int, tok string) []string {
	if core.IsVirtualRegister(tok) {
		return nil
	}

	if core.IsStatusRegister(tok) {
		if writesOperand(info, idx) || info.OperandKind(idx) == core.OperandRegister {
			return []string{fmt.Sprintf("%s cannot use the status register %s as operand %d",
				info.Name, strings.ToUpper(tok), idx)}
		}

		return nil
	}

	tier, _, err := arch.lookup(tok)
	if err != nil {
		return []string{fmt.Sprintf("Unknown register %q", tok)}
	}

	if info.Class == core.ClassMemory && info.MemTier != core.TierNone &&
		idx == 1 && tier != info.MemTier {
		return []string{fmt.Sprintf("%s addresses the %s tier but %s is in the %s tier",
			info.Name, info.MemTier, strings.ToUpper(tok), tier)}
	}

	return nil
}

// checkDMA validates that both ranges stay inside their tiers.
func checkDMA(arch ArchInfo, ops []string) []string {
	if len(ops) != 3 {
		return nil
	}

	w, err := core.ParseImmediate(ops[2])
	if err != nil {
		return nil
	}

	count, ok := w.Int64()
	if !ok || count <= 0 {
		return []string{fmt.Sprintf("DMA transfer size %s must be positive", ops[2])}
	}

	var out []string

	for _, name := range ops[:2] {
		if core.IsVirtualRegister(name) {
			continue
		}

		tier, index, err := arch.lookup(name)
		if err != nil {
			continue
		}

		if index+int(count) > arch.tierSize(tier) {
			out = append(out, fmt.Sprintf("%d words from %s run past the %s tier",
				count, strings.ToUpper(name), tier))
		}
	}

	return out
}

func writesOperand(info *core.OpInfo, idx int) bool {
	switch info.Name {
	case "CMP", "TST", "OUT", "FREE", "INT":
		return false
	case "ST1", "ST2", "ST3":
		return idx == 1
	case "DMA":
		return idx == 0
	}

	return idx == 0 && info.OperandKind(idx) != core.OperandTarget
}

func readsOperand(info *core.OpInfo, idx int) bool {
	switch info.Name {
	case "LDI", "FREE":
		return false
	case "MOV", "LD1", "LD2", "LD3", "DMA":
		return idx == 1
	case "ST1", "ST2", "ST3":
		return idx == 0
	}

	return info.OperandKind(idx) != core.OperandTarget &&
		info.OperandKind(idx) != core.OperandImmediate
}
