package core

import (
	"fmt"

	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

const maxCallDepth = 256

type instFunc func(inst *decodedInst, state *machineState) error

type instEmulator struct {
	mispredictPenalty int
	outboxDepth       int
	instFuncs         map[string]instFunc
}

func newInstEmulator(mispredictPenalty, outboxDepth int) instEmulator {
	i := instEmulator{
		mispredictPenalty: mispredictPenalty,
		outboxDepth:       outboxDepth,
	}
	i.instFuncs = i.funcs()

	return i
}

func (i instEmulator) funcs() map[string]instFunc {
	return map[string]instFunc{
		"ADD":  i.runAdd,
		"SUB":  i.runSub,
		"MUL":  i.runMul,
		"DIV":  i.runDiv,
		"NEG":  i.runUnary(trit.Word.Neg),
		"NOT":  i.runUnary(TritNot),
		"ABS":  i.runUnary(abs),
		"AND":  i.runLogic(TritAnd),
		"OR":   i.runLogic(TritOr),
		"XOR":  i.runLogic(TritXor),
		"CMP":  i.runCmp,
		"TST":  i.runTst,
		"SHL":  i.runShift(1),
		"SHR":  i.runShift(-1),
		"JMP":  i.runJmp,
		"BRN":  i.runBranchIf(trit.Neg),
		"BRZ":  i.runBranchIf(trit.Zero),
		"BRP":  i.runBranchIf(trit.Pos),
		"BR3":  i.runBr3,
		"CALL": i.runCall,
		"RET":  i.runRet,
		"LD1":  i.runLoad,
		"LD2":  i.runLoad,
		"LD3":  i.runLoad,
		"ST1":  i.runStore,
		"ST2":  i.runStore,
		"ST3":  i.runStore,
		"DMA":  i.runDMA,
		"MOV":  i.runMov,
		"LDI":  i.runLdi,
		"OUT":  i.runOut,
		"FREE": i.runFree,
		"NOP":  func(_ *decodedInst, _ *machineState) error { return nil },
		"HALT": i.runHalt,
		"INT":  i.runInt,
		"IRET": i.runIret,
		"EI":   i.runSetInterrupts(true),
		"DI":   i.runSetInterrupts(false),
	}
}

// RunInst executes a decoded instruction against the state. The PC has
// already been advanced past the instruction.
func (i instEmulator) RunInst(inst *decodedInst, state *machineState) error {
	fn, ok := i.instFuncs[inst.info.Name]
	if !ok {
		panic(fmt.Sprintf("no emulation for opcode %s", inst.info.Name))
	}

	return fn(inst, state)
}

func abs(w trit.Word) trit.Word {
	if w.Sign() == trit.Neg {
		return w.Neg()
	}

	return w
}

func (i instEmulator) read(state *machineState, arg decodedOperand) (trit.Word, error) {
	if arg.isImm {
		return arg.imm, nil
	}

	switch arg.reg {
	case RegCarry:
		return trit.WordFromInt64(int64(state.Flags.Carry)), nil
	case RegIData:
		return state.idata, nil
	case RegIVec:
		return state.ivec, nil
	}

	ref, err := state.regs.resolve(arg.reg, false)
	if err != nil {
		return trit.Word{}, err
	}

	state.touch(ref.tier)

	return state.regs.read(ref), nil
}

func (i instEmulator) write(state *machineState, arg decodedOperand, w trit.Word) error {
	ref, err := state.regs.resolve(arg.reg, true)
	if err != nil {
		return err
	}

	state.touch(ref.tier)

	return state.regs.write(ref, arg.reg, w)
}

func (i instEmulator) readPair(inst *decodedInst, state *machineState) (a, b trit.Word, err error) {
	if a, err = i.read(state, inst.args[0]); err != nil {
		return a, b, err
	}

	b, err = i.read(state, inst.args[1])

	return a, b, err
}

func setFlags(state *machineState, w trit.Word, carry trit.Trit, overflow bool) {
	state.Flags = Flags{Sign: w.Sign(), Carry: carry, Overflow: overflow}
}

func (i instEmulator) runAdd(inst *decodedInst, state *machineState) error {
	if len(inst.args) == 0 {
		return i.runTritAdd(state)
	}

	a, b, err := i.readPair(inst, state)
	if err != nil {
		return err
	}

	sum, carry := Add(a, b)
	setFlags(state, sum, carry, carry != trit.Zero)

	return i.write(state, inst.args[0], sum)
}

// runTritAdd is the operand-less ADD: one pass of the trit adder over the
// least significant trits of A and B, sum to ACC and carry to CARRY.
func (i instEmulator) runTritAdd(state *machineState) error {
	a, err := i.read(state, decodedOperand{reg: "A"})
	if err != nil {
		return err
	}

	b, err := i.read(state, decodedOperand{reg: "B"})
	if err != nil {
		return err
	}

	sum, carry := AddTrit(a[0], b[0])

	var acc trit.Word
	acc[0] = sum
	state.Flags = Flags{Sign: sum, Carry: carry}

	return i.write(state, decodedOperand{reg: "ACC"}, acc)
}

func (i instEmulator) runSub(inst *decodedInst, state *machineState) error {
	a, b, err := i.readPair(inst, state)
	if err != nil {
		return err
	}

	diff, carry := Sub(a, b)
	setFlags(state, diff, carry, carry != trit.Zero)

	return i.write(state, inst.args[0], diff)
}

func (i instEmulator) runMul(inst *decodedInst, state *machineState) error {
	a, b, err := i.readPair(inst, state)
	if err != nil {
		return err
	}

	prod, overflow := Mul(a, b)
	setFlags(state, prod, trit.Zero, overflow)

	return i.write(state, inst.args[0], prod)
}

func (i instEmulator) runDiv(inst *decodedInst, state *machineState) error {
	a, b, err := i.readPair(inst, state)
	if err != nil {
		return err
	}

	q, _, err := DivMod(a, b)
	if err != nil {
		return err
	}

	setFlags(state, q, trit.Zero, false)

	return i.write(state, inst.args[0], q)
}

func (i instEmulator) runUnary(f func(trit.Word) trit.Word) instFunc {
	return func(inst *decodedInst, state *machineState) error {
		a, err := i.read(state, inst.args[0])
		if err != nil {
			return err
		}

		r := f(a)
		setFlags(state, r, trit.Zero, false)

		return i.write(state, inst.args[0], r)
	}
}

func (i instEmulator) runLogic(f func(a, b trit.Word) trit.Word) instFunc {
	return func(inst *decodedInst, state *machineState) error {
		a, b, err := i.readPair(inst, state)
		if err != nil {
			return err
		}

		r := f(a, b)
		setFlags(state, r, trit.Zero, false)

		return i.write(state, inst.args[0], r)
	}
}

func (i instEmulator) runCmp(inst *decodedInst, state *machineState) error {
	a, b, err := i.readPair(inst, state)
	if err != nil {
		return err
	}

	diff, carry := Sub(a, b)
	setFlags(state, diff, carry, carry != trit.Zero)

	return nil
}

func (i instEmulator) runTst(inst *decodedInst, state *machineState) error {
	a, err := i.read(state, inst.args[0])
	if err != nil {
		return err
	}

	setFlags(state, a, trit.Zero, false)

	return nil
}

func (i instEmulator) runShift(dir int) instFunc {
	return func(inst *decodedInst, state *machineState) error {
		a, err := i.read(state, inst.args[0])
		if err != nil {
			return err
		}

		amount, ok := inst.args[1].imm.Int64()
		if !ok || amount < 0 || amount > trit.WordTrits {
			return simerr.New(simerr.KindDecode, "core.shift",
				"shift amount %s out of range", inst.args[1].imm)
		}

		r, lost := Shift(a, dir*int(amount))
		setFlags(state, r, trit.Zero, dir > 0 && lost)

		return i.write(state, inst.args[0], r)
	}
}

func (i instEmulator) runJmp(inst *decodedInst, state *machineState) error {
	state.PC = inst.args[0].target
	state.stats.Jumps++

	return nil
}

// resolveBranch runs the outcome through the predictor and charges the
// misprediction penalty.
func (i instEmulator) resolveBranch(pc int, outcome trit.Trit, state *machineState) {
	predicted := state.predictor.predict(pc)
	state.predictor.update(pc, outcome)
	state.stats.Branches++

	if predicted != outcome {
		state.stats.Mispredictions++
		state.stats.Flushes++
		state.flushCycles = i.mispredictPenalty
	}
}

func (i instEmulator) runBranchIf(sign trit.Trit) instFunc {
	return func(inst *decodedInst, state *machineState) error {
		pc := state.PC - 1
		outcome := trit.Zero

		if state.Flags.Sign == sign {
			outcome = trit.Pos
			state.PC = inst.args[0].target
			state.stats.BranchesTaken++
		}

		i.resolveBranch(pc, outcome, state)

		return nil
	}
}

func (i instEmulator) runBr3(inst *decodedInst, state *machineState) error {
	pc := state.PC - 1
	outcome := state.Flags.Sign

	state.PC = inst.args[outcome+1].target
	state.stats.BranchesTaken++
	i.resolveBranch(pc, outcome, state)

	return nil
}

func (i instEmulator) runCall(inst *decodedInst, state *machineState) error {
	if len(state.callStack) >= maxCallDepth {
		return simerr.New(simerr.KindResourceExhaustion, "core.CALL",
			"call depth exceeds %d", maxCallDepth)
	}

	state.callStack = append(state.callStack, state.PC)
	state.PC = inst.args[0].target
	state.stats.Calls++

	return nil
}

func (i instEmulator) runRet(_ *decodedInst, state *machineState) error {
	if len(state.callStack) == 0 {
		state.halting = true
		return nil
	}

	top := len(state.callStack) - 1
	state.PC = state.callStack[top]
	state.callStack = state.callStack[:top]

	return nil
}

func (i instEmulator) tierOperand(inst *decodedInst, state *machineState, arg decodedOperand, alloc bool) (slotRef, error) {
	ref, err := state.regs.resolve(arg.reg, alloc)
	if err != nil {
		return ref, err
	}

	if ref.tier != inst.info.MemTier {
		return ref, simerr.New(simerr.KindDecode, "core."+inst.info.Name,
			"%s is in the %s tier, %s addresses the %s tier",
			arg.reg, ref.tier, inst.info.Name, inst.info.MemTier)
	}

	state.touch(ref.tier)

	return ref, nil
}

// runLoad is LDn dst, src with src in tier n.
func (i instEmulator) runLoad(inst *decodedInst, state *machineState) error {
	src, err := i.tierOperand(inst, state, inst.args[1], false)
	if err != nil {
		return err
	}

	return i.write(state, inst.args[0], state.regs.read(src))
}

// runStore is STn src, dst with dst in tier n.
func (i instEmulator) runStore(inst *decodedInst, state *machineState) error {
	v, err := i.read(state, inst.args[0])
	if err != nil {
		return err
	}

	dst, err := i.tierOperand(inst, state, inst.args[1], true)
	if err != nil {
		return err
	}

	return state.regs.write(dst, inst.args[1].reg, v)
}

func checkRange(state *machineState, ref slotRef, count int, name string) error {
	if ref.index+count > state.regs.count(ref.tier) {
		return simerr.New(simerr.KindDecode, "core.DMA",
			"%d words from %s run past the %s tier", count, name, ref.tier)
	}

	return nil
}

func (i instEmulator) runDMA(inst *decodedInst, state *machineState) error {
	if state.dma.full() {
		state.stallNote = "dma queue full"
		return nil
	}

	count, ok := inst.args[2].imm.Int64()
	if !ok || count <= 0 {
		return simerr.New(simerr.KindDecode, "core.DMA",
			"transfer size %s must be positive", inst.args[2].imm)
	}

	dst, err := state.regs.resolve(inst.args[0].reg, true)
	if err != nil {
		return err
	}

	src, err := state.regs.resolve(inst.args[1].reg, false)
	if err != nil {
		return err
	}

	if err = checkRange(state, dst, int(count), inst.args[0].reg); err != nil {
		return err
	}

	if err = checkRange(state, src, int(count), inst.args[1].reg); err != nil {
		return err
	}

	done, err := state.dma.schedule(state.Cycle, dmaTransfer{
		dst:     dst,
		dstName: inst.args[0].reg,
		src:     src,
		count: int(count),
	})
	if err != nil {
		return err
	}

	state.stats.DMAIssued++
	Trace("DMA issued",
		"Cycle", state.Cycle,
		"Dst", inst.args[0].reg,
		"Src", inst.args[1].reg,
		"Count", count,
		"Done", done,
	)

	return nil
}

func (i instEmulator) runMov(inst *decodedInst, state *machineState) error {
	v, err := i.read(state, inst.args[1])
	if err != nil {
		return err
	}

	return i.write(state, inst.args[0], v)
}

func (i instEmulator) runLdi(inst *decodedInst, state *machineState) error {
	v := inst.args[1].imm
	setFlags(state, v, trit.Zero, false)

	return i.write(state, inst.args[0], v)
}

func (i instEmulator) runOut(inst *decodedInst, state *machineState) error {
	if len(state.outbox) >= i.outboxDepth {
		state.stallNote = "outbox full"
		return nil
	}

	v, err := i.read(state, inst.args[0])
	if err != nil {
		return err
	}

	state.outbox = append(state.outbox, v)
	state.stats.OutputWords++

	return nil
}

func (i instEmulator) runFree(inst *decodedInst, state *machineState) error {
	return state.regs.free(inst.args[0].reg)
}

func (i instEmulator) runHalt(_ *decodedInst, state *machineState) error {
	state.halting = true
	return nil
}

func (i instEmulator) runInt(inst *decodedInst, state *machineState) error {
	vector, ok := inst.args[0].imm.Int64()
	if !ok || vector < 0 {
		return simerr.New(simerr.KindDecode, "core.INT",
			"bad interrupt vector %s", inst.args[0].imm)
	}

	var payload trit.Word
	if len(inst.args) > 1 {
		var err error
		if payload, err = i.read(state, inst.args[1]); err != nil {
			return err
		}
	}

	err := state.interrupts.raise(interruptRequest{Vector: int(vector), Payload: payload})
	if err != nil {
		state.stats.InterruptOverflows++
		Trace("Interrupt dropped", "PC", state.PC-1, "Vector", vector, "Reason", err)

		return nil
	}

	state.stats.InterruptsRaised++

	return nil
}

func (i instEmulator) runIret(_ *decodedInst, state *machineState) error {
	ic := &state.interrupts
	if len(ic.frames) == 0 {
		return simerr.New(simerr.KindDecode, "core.IRET",
			"IRET outside an interrupt handler")
	}

	top := len(ic.frames) - 1
	frame := ic.frames[top]
	ic.frames = ic.frames[:top]
	ic.servicing = false

	state.PC = frame.returnPC
	state.Flags = frame.flags

	return nil
}

func (i instEmulator) runSetInterrupts(enabled bool) instFunc {
	return func(_ *decodedInst, state *machineState) error {
		state.interrupts.enabled = enabled
		return nil
	}
}
