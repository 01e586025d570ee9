package verify

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

const maxCallDepth = 256

type regRef struct {
	tier  core.Tier
	index int
}

type regSlot struct {
	value    *big.Int
	inUse    bool
	reserved bool
}

// FunctionalSimulator executes a program without cycle-accurate timing.
// Register values are plain integers kept in the balanced range of a word.
type FunctionalSimulator struct {
	prog core.Program
	arch ArchInfo

	tiers   [3][]regSlot
	virtual map[string]regRef

	pc        int
	flags     core.Flags
	callStack []int
	output    []*big.Int
	halted    bool
	steps     int

	TraceStep func(pc int, inst core.Instruction)
}

// NewFunctionalSimulator creates a new functional simulator
func NewFunctionalSimulator(p core.Program, arch ArchInfo) *FunctionalSimulator {
	fs := &FunctionalSimulator{
		prog:    p,
		arch:    arch,
		virtual: make(map[string]regRef),
	}

	for t := core.TierHot; t <= core.TierParking; t++ {
		fs.tiers[t-1] = make([]regSlot, arch.tierSize(t))
	}

	reserved := core.ReservedRegisters(p,
		arch.HotRegisters, arch.WorkingRegisters, arch.ParkingRegisters)
	for _, name := range reserved {
		if ref, err := fs.resolve(name, false); err == nil {
			fs.slot(ref).reserved = true
		}
	}

	return fs
}

// Halted reports whether the program reached HALT or a top-level RET.
func (fs *FunctionalSimulator) Halted() bool {
	return fs.halted
}

// Steps returns the number of instructions executed.
func (fs *FunctionalSimulator) Steps() int {
	return fs.steps
}

// PC returns the address of the next instruction.
func (fs *FunctionalSimulator) PC() int {
	return fs.pc
}

// Flags returns the status flags.
func (fs *FunctionalSimulator) Flags() core.Flags {
	return fs.flags
}

// Output returns the words written by OUT, in order.
func (fs *FunctionalSimulator) Output() []*big.Int {
	out := make([]*big.Int, len(fs.output))
	for i, v := range fs.output {
		out[i] = new(big.Int).Set(v)
	}

	return out
}

// Register returns the value of an architectural, virtual or status
// register.
func (fs *FunctionalSimulator) Register(name string) (*big.Int, error) {
	if strings.EqualFold(name, core.RegCarry) {
		return big.NewInt(int64(fs.flags.Carry)), nil
	}

	if core.IsStatusRegister(name) {
		return new(big.Int), nil
	}

	ref, err := fs.resolve(name, false)
	if err != nil {
		return nil, err
	}

	return new(big.Int).Set(fs.slot(ref).valueOrZero()), nil
}

func (s *regSlot) valueOrZero() *big.Int {
	if s.value == nil {
		return new(big.Int)
	}

	return s.value
}

func (fs *FunctionalSimulator) slot(ref regRef) *regSlot {
	return &fs.tiers[ref.tier-1][ref.index]
}

// resolve mirrors the machine's register allocation: virtual names take
// the first free slot the program does not name, hot tier first.
func (fs *FunctionalSimulator) resolve(name string, alloc bool) (regRef, error) {
	if !core.IsVirtualRegister(name) {
		tier, index, err := fs.arch.lookup(name)
		return regRef{tier, index}, err
	}

	if ref, ok := fs.virtual[name]; ok {
		return ref, nil
	}

	if !alloc {
		return regRef{}, structErr("register",
			"virtual register %s read before it was written", name)
	}

	for t := core.TierHot; t <= core.TierParking; t++ {
		for i, s := range fs.tiers[t-1] {
			if !s.inUse && !s.reserved {
				ref := regRef{t, i}
				fs.virtual[name] = ref
				fs.slot(ref).inUse = true

				return ref, nil
			}
		}
	}

	return regRef{}, simerr.New(simerr.KindResourceExhaustion, "verify.register",
		"no free register for %s", name)
}

func (fs *FunctionalSimulator) write(ref regRef, v *big.Int) {
	s := fs.slot(ref)
	s.value = new(big.Int).Set(v)
	s.inUse = true
}

// readOperand reads an immediate, a status register or a register.
func (fs *FunctionalSimulator) readOperand(tok string) (*big.Int, error) {
	if core.LooksImmediate(tok) {
		w, err := core.ParseImmediate(tok)
		if err != nil {
			return nil, err
		}

		return w.Big(), nil
	}

	return fs.Register(tok)
}

func (fs *FunctionalSimulator) writeOperand(tok string, v *big.Int) error {
	if core.IsStatusRegister(tok) {
		return structErr("register", "%s is read-only", strings.ToUpper(tok))
	}

	ref, err := fs.resolve(tok, true)
	if err != nil {
		return err
	}

	fs.write(ref, v)

	return nil
}

func (fs *FunctionalSimulator) setFlags(v *big.Int, carry int64, overflow bool) {
	fs.flags = core.Flags{
		Sign:     sign(v),
		Carry:    trit.Trit(carry),
		Overflow: overflow,
	}
}

// Run executes the program until it halts. It fails if the program
// faults or has not halted after maxSteps instructions.
func (fs *FunctionalSimulator) Run(maxSteps int) error {
	for !fs.halted {
		if fs.steps >= maxSteps {
			return simerr.New(simerr.KindState, "verify.Run",
				"program did not halt within %d steps", maxSteps)
		}

		if err := fs.Step(); err != nil {
			return err
		}
	}

	return nil
}

// Step executes one instruction.
func (fs *FunctionalSimulator) Step() error {
	if fs.halted {
		return simerr.New(simerr.KindState, "verify.Step", "program has halted")
	}

	if fs.pc < 0 || fs.pc >= fs.prog.Len() {
		return structErr("Step", "PC %d is outside the %d-instruction program",
			fs.pc, fs.prog.Len())
	}

	pc := fs.pc
	inst := fs.prog.Instructions[pc]

	info, err := core.LookupOpcode(inst.Opcode)
	if err != nil {
		return err
	}

	argc := len(inst.Operands)
	if argc < info.MinOperands || argc > info.MaxOperands ||
		(info.Name == "ADD" && argc == 1) {
		return structErr("Step", "%s takes %d to %d operands, got %d",
			info.Name, info.MinOperands, info.MaxOperands, argc)
	}

	if fs.TraceStep != nil {
		fs.TraceStep(pc, inst)
	}

	fs.pc++
	fs.steps++

	if err := fs.execute(info, inst.Operands); err != nil {
		return simerr.Wrap(simerr.KindOf(err), "verify.Step",
			fmt.Errorf("pc %d (%s): %w", pc, inst, err))
	}

	return nil
}

func (fs *FunctionalSimulator) execute(info *core.OpInfo, ops []string) error {
	switch info.Name {
	case "ADD":
		if len(ops) == 0 {
			return fs.tritAdd()
		}

		return fs.binary(ops, func(a, b *big.Int) (*big.Int, int64, bool) {
			v, carry := wrap(new(big.Int).Add(a, b))
			return v, carry, carry != 0
		})
	case "SUB":
		return fs.binary(ops, func(a, b *big.Int) (*big.Int, int64, bool) {
			v, carry := wrap(new(big.Int).Sub(a, b))
			return v, carry, carry != 0
		})
	case "MUL":
		return fs.binary(ops, func(a, b *big.Int) (*big.Int, int64, bool) {
			p := new(big.Int).Mul(a, b)
			v, _ := wrap(p)

			return v, 0, p.CmpAbs(wordMax) > 0
		})
	case "DIV":
		return fs.div(ops)
	case "NEG", "NOT":
		return fs.unary(ops, func(a *big.Int) *big.Int { return new(big.Int).Neg(a) })
	case "ABS":
		return fs.unary(ops, func(a *big.Int) *big.Int { return new(big.Int).Abs(a) })
	case "AND":
		return fs.tritwise(ops, func(a, b int) int { return min(a, b) })
	case "OR":
		return fs.tritwise(ops, func(a, b int) int { return max(a, b) })
	case "XOR":
		return fs.tritwise(ops, func(a, b int) int {
			_, r := balancedMod(big.NewInt(int64(a+b)), big.NewInt(3))
			return int(r.Int64())
		})
	case "CMP":
		a, b, err := fs.readPair(ops)
		if err != nil {
			return err
		}

		v, carry := wrap(new(big.Int).Sub(a, b))
		fs.setFlags(v, carry, carry != 0)
	case "TST":
		a, err := fs.readOperand(ops[0])
		if err != nil {
			return err
		}

		fs.setFlags(a, 0, false)
	case "SHL", "SHR":
		return fs.shift(info.Name == "SHL", ops)
	case "JMP":
		return fs.jump(ops[0])
	case "BRN", "BRZ", "BRP":
		want := map[string]trit.Trit{"BRN": trit.Neg, "BRZ": trit.Zero, "BRP": trit.Pos}[info.Name]
		if fs.flags.Sign == want {
			return fs.jump(ops[0])
		}
	case "BR3":
		return fs.jump(ops[fs.flags.Sign+1])
	case "CALL":
		if len(fs.callStack) >= maxCallDepth {
			return simerr.New(simerr.KindResourceExhaustion, "verify.CALL",
				"call depth exceeds %d", maxCallDepth)
		}

		fs.callStack = append(fs.callStack, fs.pc)

		return fs.jump(ops[0])
	case "RET":
		if len(fs.callStack) == 0 {
			fs.halted = true
			return nil
		}

		top := len(fs.callStack) - 1
		fs.pc = fs.callStack[top]
		fs.callStack = fs.callStack[:top]
	case "LD1", "LD2", "LD3":
		src, err := fs.tierOperand(info, ops[1], false)
		if err != nil {
			return err
		}

		return fs.writeOperand(ops[0], fs.slot(src).valueOrZero())
	case "ST1", "ST2", "ST3":
		v, err := fs.readOperand(ops[0])
		if err != nil {
			return err
		}

		dst, err := fs.tierOperand(info, ops[1], true)
		if err != nil {
			return err
		}

		fs.write(dst, v)
	case "DMA":
		return fs.dma(ops)
	case "MOV":
		v, err := fs.readOperand(ops[1])
		if err != nil {
			return err
		}

		return fs.writeOperand(ops[0], v)
	case "LDI":
		w, err := core.ParseImmediate(ops[1])
		if err != nil {
			return err
		}

		fs.setFlags(w.Big(), 0, false)

		return fs.writeOperand(ops[0], w.Big())
	case "OUT":
		v, err := fs.readOperand(ops[0])
		if err != nil {
			return err
		}

		fs.output = append(fs.output, v)
	case "FREE":
		return fs.free(ops[0])
	case "HALT":
		fs.halted = true
	case "INT":
		if len(ops) > 1 {
			if _, err := fs.readOperand(ops[1]); err != nil {
				return err
			}
		}
	case "IRET":
		return structErr("IRET", "IRET outside an interrupt handler")
	case "NOP", "EI", "DI":
	}

	return nil
}

func (fs *FunctionalSimulator) readPair(ops []string) (a, b *big.Int, err error) {
	if a, err = fs.readOperand(ops[0]); err != nil {
		return nil, nil, err
	}

	b, err = fs.readOperand(ops[1])

	return a, b, err
}

func (fs *FunctionalSimulator) binary(ops []string,
	f func(a, b *big.Int) (*big.Int, int64, bool),
) error {
	a, b, err := fs.readPair(ops)
	if err != nil {
		return err
	}

	v, carry, overflow := f(a, b)
	fs.setFlags(v, carry, overflow)

	return fs.writeOperand(ops[0], v)
}

func (fs *FunctionalSimulator) unary(ops []string, f func(a *big.Int) *big.Int) error {
	a, err := fs.readOperand(ops[0])
	if err != nil {
		return err
	}

	v := f(a)
	fs.setFlags(v, 0, false)

	return fs.writeOperand(ops[0], v)
}

func (fs *FunctionalSimulator) tritwise(ops []string, f func(a, b int) int) error {
	a, b, err := fs.readPair(ops)
	if err != nil {
		return err
	}

	da, db := trits(a), trits(b)
	for i := range da {
		da[i] = f(da[i], db[i])
	}

	v := fromTrits(da)
	fs.setFlags(v, 0, false)

	return fs.writeOperand(ops[0], v)
}

// tritAdd is the operand-less ADD of the low trits of A and B.
func (fs *FunctionalSimulator) tritAdd() error {
	a, b, err := fs.readPair([]string{"A", "B"})
	if err != nil {
		return err
	}

	s := int64(trits(a)[0] + trits(b)[0])
	carry, sum := balancedMod(big.NewInt(s), big.NewInt(3))

	fs.flags = core.Flags{Sign: sign(sum), Carry: trit.Trit(carry.Int64())}

	return fs.writeOperand("ACC", sum)
}

func (fs *FunctionalSimulator) div(ops []string) error {
	a, b, err := fs.readPair(ops)
	if err != nil {
		return err
	}

	if b.Sign() == 0 {
		return simerr.New(simerr.KindArithmetic, "verify.DIV", "division by zero")
	}

	q := new(big.Int).Quo(a, b)
	fs.setFlags(q, 0, false)

	return fs.writeOperand(ops[0], q)
}

func (fs *FunctionalSimulator) shift(left bool, ops []string) error {
	a, err := fs.readOperand(ops[0])
	if err != nil {
		return err
	}

	w, err := core.ParseImmediate(ops[1])
	if err != nil {
		return err
	}

	n, ok := w.Int64()
	if !ok || n < 0 || n > trit.WordTrits {
		return structErr("shift", "shift amount %s out of range", ops[1])
	}

	scale := new(big.Int).Exp(big.NewInt(3), big.NewInt(n), nil)

	var v *big.Int
	overflow := false

	if left {
		full := new(big.Int).Mul(a, scale)
		v, _ = wrap(full)
		overflow = v.Cmp(full) != 0
	} else {
		v, _ = balancedMod(a, scale)
	}

	fs.setFlags(v, 0, overflow)

	return fs.writeOperand(ops[0], v)
}

func (fs *FunctionalSimulator) jump(target string) error {
	addr, err := fs.prog.ResolveTarget(target)
	if err != nil {
		return err
	}

	if addr < 0 || addr >= fs.prog.Len() {
		return structErr("jump", "branch target %d is outside the program", addr)
	}

	fs.pc = addr

	return nil
}

func (fs *FunctionalSimulator) tierOperand(info *core.OpInfo, tok string, alloc bool) (regRef, error) {
	ref, err := fs.resolve(tok, alloc)
	if err != nil {
		return ref, err
	}

	if ref.tier != info.MemTier {
		return ref, structErr(info.Name, "%s is in the %s tier, %s addresses the %s tier",
			tok, ref.tier, info.Name, info.MemTier)
	}

	return ref, nil
}

// dma copies at issue; the machine copies when the transfer completes.
func (fs *FunctionalSimulator) dma(ops []string) error {
	w, err := core.ParseImmediate(ops[2])
	if err != nil {
		return err
	}

	count, ok := w.Int64()
	if !ok || count <= 0 {
		return structErr("DMA", "transfer size %s must be positive", ops[2])
	}

	dst, err := fs.resolve(ops[0], true)
	if err != nil {
		return err
	}

	src, err := fs.resolve(ops[1], false)
	if err != nil {
		return err
	}

	for _, r := range []regRef{dst, src} {
		if r.index+int(count) > fs.arch.tierSize(r.tier) {
			return structErr("DMA", "%d words run past the %s tier", count, r.tier)
		}
	}

	words := make([]*big.Int, count)
	for k := range words {
		words[k] = fs.slot(regRef{src.tier, src.index + k}).valueOrZero()
	}

	for k, v := range words {
		fs.write(regRef{dst.tier, dst.index + k}, v)
	}

	return nil
}

func (fs *FunctionalSimulator) free(name string) error {
	if core.IsVirtualRegister(name) {
		ref, ok := fs.virtual[name]
		if !ok {
			return structErr("FREE", "virtual register %s is not allocated", name)
		}

		delete(fs.virtual, name)
		fs.slot(ref).inUse = false

		return nil
	}

	ref, err := fs.resolve(name, false)
	if err != nil {
		return err
	}

	fs.slot(ref).inUse = false

	return nil
}
