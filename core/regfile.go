package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// Tier identifies a register tier. TierNone marks status registers and
// cycles that touch no register.
type Tier int

// The register tiers, fastest first.
const (
	TierNone Tier = iota
	TierHot
	TierWorking
	TierParking
)

var tierNames = [...]string{"-", "hot", "working", "parking"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier(%d)", int(t))
	}

	return tierNames[t]
}

var hotNames = [...]string{"ACC", "TMP", "A", "B"}

// The status registers. They are readable as operands but only the machine
// writes them.
const (
	RegCarry = "CARRY"
	RegIData = "IDATA"
	RegIVec  = "IVEC"
)

type slotRef struct {
	tier  Tier
	index int
}

type regSlot struct {
	value trit.Word
	inUse bool

	// owner is the virtual register holding the slot.
	owner string

	// reserved slots are named by the loaded program and never handed to
	// virtual registers.
	reserved bool
}

type regFile struct {
	tiers    [3][]regSlot
	virtual  map[string]slotRef
	reserved []slotRef
}

func newRegFile(hot, working, parking int) regFile {
	rf := regFile{virtual: make(map[string]slotRef)}
	rf.tiers[0] = make([]regSlot, hot)
	rf.tiers[1] = make([]regSlot, working)
	rf.tiers[2] = make([]regSlot, parking)

	return rf
}

func (rf *regFile) reset() {
	for t := range rf.tiers {
		clear(rf.tiers[t])
	}

	clear(rf.virtual)

	for _, ref := range rf.reserved {
		rf.slot(ref).reserved = true
	}
}

// reserve keeps the named architectural registers out of virtual
// allocation. Names that do not resolve are skipped.
func (rf *regFile) reserve(names []string) {
	rf.reserved = rf.reserved[:0]

	for _, name := range names {
		if ref, err := rf.lookup(name); err == nil {
			rf.reserved = append(rf.reserved, ref)
		}
	}
}

func (rf *regFile) count(t Tier) int {
	return len(rf.tiers[t-1])
}

func (rf *regFile) slot(ref slotRef) *regSlot {
	return &rf.tiers[ref.tier-1][ref.index]
}

func isVirtual(name string) bool {
	return strings.HasPrefix(name, "%")
}

// lookup resolves an architectural register name.
func (rf *regFile) lookup(name string) (slotRef, error) {
	upper := strings.ToUpper(name)

	for i, n := range hotNames {
		if upper == n {
			if i >= rf.count(TierHot) {
				break
			}

			return slotRef{TierHot, i}, nil
		}
	}

	if len(upper) > 1 && (upper[0] == 'R' || upper[0] == 'P') {
		tier := TierWorking
		if upper[0] == 'P' {
			tier = TierParking
		}

		idx, err := strconv.Atoi(upper[1:])
		if err == nil && idx >= 0 && idx < rf.count(tier) {
			return slotRef{tier, idx}, nil
		}
	}

	return slotRef{}, simerr.New(simerr.KindDecode, "core.register",
		"unknown register %q", name)
}

// resolve maps a register operand to a slot. Virtual names are allocated
// when alloc is set and they have no slot yet.
func (rf *regFile) resolve(name string, alloc bool) (slotRef, error) {
	if !isVirtual(name) {
		return rf.lookup(name)
	}

	if ref, ok := rf.virtual[name]; ok {
		return ref, nil
	}

	if !alloc {
		return slotRef{}, simerr.New(simerr.KindDecode, "core.register",
			"virtual register %s read before it was written", name)
	}

	ref, err := rf.allocate()
	if err != nil {
		return slotRef{}, simerr.Wrap(simerr.KindResourceExhaustion,
			"core.register", fmt.Errorf("allocating %s: %w", name, err))
	}

	rf.virtual[name] = ref
	rf.slot(ref).inUse = true
	rf.slot(ref).owner = name

	return ref, nil
}

// allocate returns the first free slot, searching the hot tier first.
func (rf *regFile) allocate() (slotRef, error) {
	for t := TierHot; t <= TierParking; t++ {
		for i, s := range rf.tiers[t-1] {
			if !s.inUse && !s.reserved {
				return slotRef{t, i}, nil
			}
		}
	}

	return slotRef{}, simerr.New(simerr.KindResourceExhaustion, "core.register",
		"all register tiers are exhausted")
}

func (rf *regFile) free(name string) error {
	if isVirtual(name) {
		ref, ok := rf.virtual[name]
		if !ok {
			return simerr.New(simerr.KindDecode, "core.register",
				"virtual register %s is not allocated", name)
		}

		delete(rf.virtual, name)
		rf.slot(ref).inUse = false
		rf.slot(ref).owner = ""

		return nil
	}

	ref, err := rf.lookup(name)
	if err != nil {
		return err
	}

	if err := rf.checkOwner(ref, name); err != nil {
		return err
	}

	rf.slot(ref).inUse = false

	return nil
}

// checkOwner fails when name is not the virtual register that holds ref.
func (rf *regFile) checkOwner(ref slotRef, name string) error {
	owner := rf.slot(ref).owner
	if owner == "" || owner == name {
		return nil
	}

	return simerr.New(simerr.KindState, "core.register",
		"%s is held by virtual register %s", name, owner)
}

func (rf *regFile) read(ref slotRef) trit.Word {
	return rf.slot(ref).value
}

// write stores w in ref on behalf of name, the operand as written. A write
// through an architectural name to a slot held by a virtual register fails.
func (rf *regFile) write(ref slotRef, name string, w trit.Word) error {
	if err := rf.checkOwner(ref, name); err != nil {
		return err
	}

	s := rf.slot(ref)
	s.value = w
	s.inUse = true

	return nil
}

// name returns the architectural name of a slot.
func (rf *regFile) name(ref slotRef) string {
	switch ref.tier {
	case TierHot:
		return hotNames[ref.index]
	case TierWorking:
		return fmt.Sprintf("R%d", ref.index)
	case TierParking:
		return fmt.Sprintf("P%d", ref.index)
	}

	return "?"
}

func (rf *regFile) inUse(t Tier) int {
	n := 0
	for _, s := range rf.tiers[t-1] {
		if s.inUse {
			n++
		}
	}

	return n
}

// LookupRegister resolves an architectural register name on a machine with
// the given tier sizes. Virtual and status registers are not resolved.
func LookupRegister(name string, hot, working, parking int) (Tier, int, error) {
	rf := newRegFile(hot, working, parking)

	ref, err := rf.lookup(name)
	if err != nil {
		return TierNone, 0, err
	}

	return ref.tier, ref.index, nil
}

// IsVirtualRegister reports whether name is a %-prefixed virtual register.
func IsVirtualRegister(name string) bool {
	return isVirtual(name)
}

// IsStatusRegister reports whether name is one of the read-only status
// registers.
func IsStatusRegister(name string) bool {
	switch strings.ToUpper(name) {
	case RegCarry, RegIData, RegIVec:
		return true
	}

	return false
}

// ReservedRegisters lists the architectural registers p names on a machine
// with the given tier sizes, in program order without duplicates. The
// operand-less ADD names A, B and ACC implicitly, and a DMA with an
// immediate count names every register of both ranges. Virtual registers
// are never allocated to these slots.
func ReservedRegisters(p Program, hot, working, parking int) []string {
	rf := newRegFile(hot, working, parking)
	seen := make(map[slotRef]bool)

	var out []string

	add := func(ref slotRef) {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, rf.name(ref))
		}
	}

	for _, inst := range p.Instructions {
		info, err := LookupOpcode(inst.Opcode)
		if err != nil {
			continue
		}

		if info.Name == "ADD" && len(inst.Operands) == 0 {
			for _, name := range []string{"A", "B", "ACC"} {
				if ref, err := rf.lookup(name); err == nil {
					add(ref)
				}
			}
		}

		count := int64(1)
		if info.Name == "DMA" && len(inst.Operands) == 3 {
			if w, err := ParseImmediate(inst.Operands[2]); err == nil {
				if n, ok := w.Int64(); ok && n > 1 {
					count = n
				}
			}
		}

		for idx, tok := range inst.Operands {
			if info.OperandKind(idx) == OperandTarget || LooksImmediate(tok) ||
				isVirtual(tok) || IsStatusRegister(tok) {
				continue
			}

			ref, err := rf.lookup(tok)
			if err != nil {
				continue
			}

			span := int64(1)
			if info.Name == "DMA" && idx < 2 {
				span = count
			}

			for k := 0; k < int(span) && ref.index+k < rf.count(ref.tier); k++ {
				add(slotRef{ref.tier, ref.index + k})
			}
		}
	}

	return out
}
