package core

import (
	"strings"

	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// OpClass groups opcodes by the unit that executes them.
type OpClass int

// The opcode classes.
const (
	ClassArith OpClass = iota
	ClassLogic
	ClassControl
	ClassMemory
	ClassData
	ClassSystem
)

// OpInfo describes one opcode.
type OpInfo struct {
	Name        string
	Encoding    trit.Vector
	Latency     int
	Class       OpClass
	MinOperands int
	MaxOperands int
	// MemTier is the tier an LDn/STn instruction addresses.
	MemTier Tier
}

func op(name string, enc []trit.Trit, latency int, class OpClass,
	minOps, maxOps int,
) *OpInfo {
	return &OpInfo{
		Name:        name,
		Encoding:    trit.Vector(enc),
		Latency:     latency,
		Class:       class,
		MinOperands: minOps,
		MaxOperands: maxOps,
	}
}

func memOp(name string, enc []trit.Trit, latency int, tier Tier) *OpInfo {
	o := op(name, enc, latency, ClassMemory, 2, 2)
	o.MemTier = tier

	return o
}

const (
	tN = trit.Neg
	tZ = trit.Zero
	tP = trit.Pos
)

var isaTable = []*OpInfo{
	op("ADD", []trit.Trit{tN, tN, tN}, 1, ClassArith, 0, 2),
	op("SUB", []trit.Trit{tN, tN, tZ}, 1, ClassArith, 2, 2),
	op("MUL", []trit.Trit{tN, tN, tP}, 3, ClassArith, 2, 2),
	op("DIV", []trit.Trit{tN, tZ, tN}, 5, ClassArith, 2, 2),
	op("NEG", []trit.Trit{tN, tZ, tZ}, 1, ClassArith, 1, 1),
	op("ABS", []trit.Trit{tN, tZ, tP}, 1, ClassArith, 1, 1),

	op("AND", []trit.Trit{tZ, tN, tN}, 1, ClassLogic, 2, 2),
	op("OR", []trit.Trit{tZ, tN, tZ}, 1, ClassLogic, 2, 2),
	op("NOT", []trit.Trit{tZ, tN, tP}, 1, ClassLogic, 1, 1),
	op("XOR", []trit.Trit{tZ, tZ, tN}, 1, ClassLogic, 2, 2),
	op("CMP", []trit.Trit{tZ, tZ, tZ}, 1, ClassLogic, 2, 2),
	op("TST", []trit.Trit{tZ, tZ, tP}, 1, ClassLogic, 1, 1),
	op("SHL", []trit.Trit{tN, tN, tZ, tN}, 1, ClassLogic, 2, 2),
	op("SHR", []trit.Trit{tN, tN, tZ, tZ}, 1, ClassLogic, 2, 2),

	op("JMP", []trit.Trit{tP, tN, tN}, 2, ClassControl, 1, 1),
	op("BRN", []trit.Trit{tP, tN, tZ}, 2, ClassControl, 1, 1),
	op("BRZ", []trit.Trit{tP, tN, tP}, 2, ClassControl, 1, 1),
	op("BRP", []trit.Trit{tP, tZ, tN}, 2, ClassControl, 1, 1),
	op("BR3", []trit.Trit{tP, tZ, tZ}, 2, ClassControl, 3, 3),
	op("CALL", []trit.Trit{tP, tZ, tP}, 3, ClassControl, 1, 1),
	op("RET", []trit.Trit{tP, tP, tN}, 2, ClassControl, 0, 0),

	memOp("LD1", []trit.Trit{tP, tP, tZ}, 2, TierHot),
	memOp("ST1", []trit.Trit{tP, tP, tP}, 2, TierHot),
	memOp("LD2", []trit.Trit{tN, tP, tN}, 4, TierWorking),
	memOp("ST2", []trit.Trit{tN, tP, tZ}, 4, TierWorking),
	memOp("LD3", []trit.Trit{tN, tP, tP}, 8, TierParking),
	memOp("ST3", []trit.Trit{tZ, tP, tN}, 8, TierParking),
	op("DMA", []trit.Trit{tZ, tP, tZ}, 1, ClassMemory, 3, 3),

	op("MOV", []trit.Trit{tZ, tZ, tN, tZ}, 1, ClassData, 2, 2),
	op("LDI", []trit.Trit{tZ, tZ, tN, tP}, 1, ClassData, 2, 2),
	op("OUT", []trit.Trit{tZ, tZ, tP, tN}, 1, ClassData, 1, 1),
	op("FREE", []trit.Trit{tZ, tZ, tP, tZ}, 1, ClassData, 1, 1),

	op("NOP", []trit.Trit{tZ, tP, tP}, 1, ClassSystem, 0, 0),
	op("HALT", []trit.Trit{tN, tN, tN, tN}, 1, ClassSystem, 0, 0),
	op("INT", []trit.Trit{tZ, tZ, tN, tN}, 3, ClassSystem, 1, 2),
	op("IRET", []trit.Trit{tZ, tZ, tP, tP}, 2, ClassSystem, 0, 0),
	op("EI", []trit.Trit{tN, tN, tN, tZ}, 1, ClassSystem, 0, 0),
	op("DI", []trit.Trit{tN, tN, tN, tP}, 1, ClassSystem, 0, 0),
}

// aliases name the same OpInfo under another mnemonic.
var aliases = map[string]string{
	"SET": "LDI",
	"RUN": "ADD",
}

var (
	isaByName     = make(map[string]*OpInfo)
	isaByEncoding = make(map[string]*OpInfo)
)

func init() {
	for _, o := range isaTable {
		isaByName[o.Name] = o
		isaByEncoding[o.Encoding.String()] = o
	}

	for alias, name := range aliases {
		isaByName[alias] = isaByName[name]
	}
}

// LookupOpcode finds an opcode by mnemonic or by a 0t-prefixed encoding.
func LookupOpcode(token string) (*OpInfo, error) {
	if strings.HasPrefix(token, "0t") {
		v, err := trit.ParseVector(token[2:])
		if err != nil {
			return nil, simerr.Wrap(simerr.KindDecode, "core.LookupOpcode", err)
		}

		return DecodeOpcode(v)
	}

	if o, ok := isaByName[strings.ToUpper(token)]; ok {
		return o, nil
	}

	return nil, simerr.New(simerr.KindDecode, "core.LookupOpcode",
		"invalid opcode %q", token)
}

// DecodeOpcode maps a trit encoding to its opcode.
func DecodeOpcode(v trit.Vector) (*OpInfo, error) {
	if o, ok := isaByEncoding[v.String()]; ok {
		return o, nil
	}

	return nil, simerr.New(simerr.KindDecode, "core.DecodeOpcode",
		"invalid opcode encoding %s", v)
}

// Opcodes lists the ISA in table order.
func Opcodes() []*OpInfo {
	return append([]*OpInfo(nil), isaTable...)
}
