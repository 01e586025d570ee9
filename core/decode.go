package core

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// OperandKind says how an operand is read.
type OperandKind int

// The operand kinds. A source is a register or an immediate.
const (
	OperandSource OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandTarget
)

// OperandKind classifies operand idx of the opcode.
func (o *OpInfo) OperandKind(idx int) OperandKind {
	return kindOf(o.Name, idx)
}

func kindOf(name string, idx int) OperandKind {
	switch name {
	case "JMP", "BRN", "BRZ", "BRP", "BR3", "CALL":
		return OperandTarget
	case "INT":
		if idx == 0 {
			return OperandImmediate
		}
	case "LDI", "SHL", "SHR":
		if idx == 1 {
			return OperandImmediate
		}
	case "DMA":
		if idx == 2 {
			return OperandImmediate
		}

		return OperandRegister
	case "ST1", "ST2", "ST3":
		if idx == 1 {
			return OperandRegister
		}

		return OperandSource
	case "LD1", "LD2", "LD3":
		return OperandRegister
	case "CMP", "TST", "OUT":
		return OperandSource
	case "FREE":
		return OperandRegister
	}

	if idx == 0 {
		return OperandRegister
	}

	return OperandSource
}

// LooksImmediate reports whether an operand token is written as a number.
func LooksImmediate(tok string) bool {
	if tok == "" {
		return false
	}

	c := tok[0]

	return (c >= '0' && c <= '9') || c == '-' || c == '+'
}

// ParseImmediate reads a decimal or 0t-prefixed trit immediate.
func ParseImmediate(tok string) (trit.Word, error) {
	if strings.HasPrefix(tok, "0t") {
		return trit.ParseWord(tok)
	}

	if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return trit.WordFromInt64(v), nil
	}

	b, ok := new(big.Int).SetString(tok, 10)
	if !ok {
		return trit.Word{}, simerr.New(simerr.KindDecode, "core.decode",
			"bad immediate %q", tok)
	}

	w, fits := trit.WordFromBig(b)
	if !fits {
		return trit.Word{}, simerr.New(simerr.KindDecode, "core.decode",
			"immediate %s does not fit in %d trits", tok, trit.WordTrits)
	}

	return w, nil
}

func canonicalRegister(tok string) string {
	if isVirtual(tok) {
		return tok
	}

	return strings.ToUpper(tok)
}

// decode turns the instruction at pc into its executable form. Results are
// cached per address.
func (m *Machine) decode(pc int) (*decodedInst, error) {
	s := &m.state

	if pc < 0 || pc >= len(s.program.Instructions) {
		return nil, simerr.New(simerr.KindDecode, "core.decode",
			"PC %d is outside the %d-instruction program",
			pc, len(s.program.Instructions))
	}

	if d := s.decoded[pc]; d != nil {
		return d, nil
	}

	raw := s.program.Instructions[pc]

	info, err := LookupOpcode(raw.Opcode)
	if err != nil {
		return nil, err
	}

	argc := len(raw.Operands)
	if argc < info.MinOperands || argc > info.MaxOperands ||
		(info.Name == "ADD" && argc == 1) {
		return nil, simerr.New(simerr.KindDecode, "core.decode",
			"%s takes %d to %d operands, got %d",
			info.Name, info.MinOperands, info.MaxOperands, argc)
	}

	d := &decodedInst{
		info: info,
		raw:  raw,
		args: make([]decodedOperand, argc),
	}

	for idx, tok := range raw.Operands {
		arg, err := m.decodeOperand(info, idx, tok)
		if err != nil {
			return nil, err
		}

		d.args[idx] = arg
	}

	s.decoded[pc] = d

	return d, nil
}

func (m *Machine) decodeOperand(info *OpInfo, idx int, tok string) (decodedOperand, error) {
	switch kindOf(info.Name, idx) {
	case OperandTarget:
		addr, err := m.state.program.ResolveTarget(tok)
		if err != nil {
			return decodedOperand{}, err
		}

		if addr < 0 || addr >= len(m.state.program.Instructions) {
			return decodedOperand{}, simerr.New(simerr.KindDecode, "core.decode",
				"branch target %d is outside the program", addr)
		}

		return decodedOperand{target: addr}, nil
	case OperandImmediate:
		w, err := ParseImmediate(tok)
		if err != nil {
			return decodedOperand{}, err
		}

		return decodedOperand{imm: w, isImm: true}, nil
	case OperandRegister:
		if LooksImmediate(tok) {
			return decodedOperand{}, simerr.New(simerr.KindDecode, "core.decode",
				"%s operand %d must be a register, got %q", info.Name, idx, tok)
		}

		return decodedOperand{reg: canonicalRegister(tok)}, nil
	default:
		if LooksImmediate(tok) {
			w, err := ParseImmediate(tok)
			if err != nil {
				return decodedOperand{}, err
			}

			return decodedOperand{imm: w, isImm: true}, nil
		}

		return decodedOperand{reg: canonicalRegister(tok)}, nil
	}
}
