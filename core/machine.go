package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// StopReason says why Run returned.
type StopReason int

// The reasons Run can stop.
const (
	StopHalted StopReason = iota
	StopWatchdog
	StopCancelled
	StopFault
)

func (r StopReason) String() string {
	switch r {
	case StopHalted:
		return "halted"
	case StopWatchdog:
		return "watchdog"
	case StopCancelled:
		return "cancelled"
	case StopFault:
		return "fault"
	}

	return fmt.Sprintf("stop(%d)", int(r))
}

// Result summarizes a Run call.
type Result struct {
	Reason  StopReason `cbor:"1,keyasint"`
	Cycles  uint64     `cbor:"2,keyasint"`
	Retired uint64     `cbor:"3,keyasint"`
	PC      int        `cbor:"4,keyasint"`
}

// A Fault is a fatal condition. The machine halts and keeps its trace up to
// the faulting cycle.
type Fault struct {
	PC          int
	Instruction Instruction
	Cycle       uint64
	Err         error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at PC %d (%s), cycle %d: %v",
		f.PC, f.Instruction, f.Cycle, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// stepLimit bounds how long Step waits for a retirement.
const stepLimit = 1 << 20

// Machine is a cycle-level model of the ternary core. It is not safe for
// concurrent use; drive it from one goroutine, as the akita engine does.
type Machine struct {
	cfg   Builder
	emu   instEmulator
	state machineState
}

// LoadProgram installs p and resets the machine.
func (m *Machine) LoadProgram(p Program) error {
	if p.Len() == 0 {
		return simerr.New(simerr.KindState, "core.LoadProgram", "program is empty")
	}

	for v, addr := range p.Vectors {
		if addr < 0 || addr >= p.Len() {
			return simerr.New(simerr.KindDecode, "core.LoadProgram",
				"vector %d handler %d is outside the program", v, addr)
		}
	}

	m.state.program = p
	m.state.decoded = make([]*decodedInst, p.Len())
	m.state.regs.reserve(ReservedRegisters(p, m.state.regs.count(TierHot),
		m.state.regs.count(TierWorking), m.state.regs.count(TierParking)))

	m.state.interrupts.vectors = make(map[int]int, len(p.Vectors))
	for v, addr := range p.Vectors {
		m.state.interrupts.vectors[v] = addr
	}

	m.Reset()

	return nil
}

// Program returns the loaded program.
func (m *Machine) Program() Program {
	return m.state.program
}

// Reset returns the machine to its power-on state, keeping the program and
// interrupt vectors.
func (m *Machine) Reset() {
	s := &m.state

	s.PC = 0
	s.Flags = Flags{}
	s.Halted = false
	s.Cycle = 0
	s.Retired = 0
	s.Stage = StageReset
	s.idata = trit.Word{}
	s.ivec = trit.Word{}
	s.halting = false
	s.fault = nil

	s.regs.reset()
	s.predictor.reset()
	s.dma.reset()
	s.interrupts.reset()
	s.callStack = nil
	s.outbox = nil
	s.plan = nil
	s.nextRefresh = uint64(m.cfg.refreshInterval)
	s.trace.reset()
	s.stats = Stats{}
}

// SetVector binds an interrupt vector to a handler address.
func (m *Machine) SetVector(vector, addr int) error {
	if addr < 0 || addr >= m.state.program.Len() {
		return simerr.New(simerr.KindDecode, "core.SetVector",
			"handler %d is outside the program", addr)
	}

	m.state.interrupts.vectors[vector] = addr

	return nil
}

// PC returns the address of the next instruction to issue.
func (m *Machine) PC() int {
	return m.state.PC
}

// Flags returns the status flags.
func (m *Machine) Flags() Flags {
	return m.state.Flags
}

// Halted reports whether the machine has stopped, normally or by a fault.
func (m *Machine) Halted() bool {
	return m.state.Halted
}

// Fault returns the fault that halted the machine, if any.
func (m *Machine) Fault() *Fault {
	return m.state.fault
}

// Cycle returns the number of cycles since reset.
func (m *Machine) Cycle() uint64 {
	return m.state.Cycle
}

// Stage returns the stage of the most recent cycle.
func (m *Machine) Stage() Stage {
	return m.state.Stage
}

// Trace returns a copy of the recorded cycles.
func (m *Machine) Trace() []TraceRecord {
	return m.state.trace.snapshot()
}

// Stats returns the counters.
func (m *Machine) Stats() Stats {
	st := m.state.stats
	st.Cycles = m.state.Cycle
	st.Retired = m.state.Retired

	return st
}

// Register reads a register or status register by name.
func (m *Machine) Register(name string) (trit.Word, error) {
	name = canonicalRegister(name)

	switch name {
	case RegCarry:
		return trit.WordFromInt64(int64(m.state.Flags.Carry)), nil
	case RegIData:
		return m.state.idata, nil
	case RegIVec:
		return m.state.ivec, nil
	}

	ref, err := m.state.regs.resolve(name, false)
	if err != nil {
		return trit.Word{}, err
	}

	return m.state.regs.read(ref), nil
}

// SetRegister preloads a register.
func (m *Machine) SetRegister(name string, w trit.Word) error {
	name = canonicalRegister(name)

	ref, err := m.state.regs.resolve(name, true)
	if err != nil {
		return err
	}

	return m.state.regs.write(ref, name, w)
}

// TierUsage returns how many slots of each tier hold live values, indexed
// hot, working, parking.
func (m *Machine) TierUsage() (used, total [3]int) {
	for t := TierHot; t <= TierParking; t++ {
		used[t-1] = m.state.regs.inUse(t)
		total[t-1] = m.state.regs.count(t)
	}

	return used, total
}

// RaiseInterrupt queues an external interrupt. It returns a backpressure
// error when the queue is full.
func (m *Machine) RaiseInterrupt(vector int, payload trit.Word) error {
	err := m.state.interrupts.raise(interruptRequest{Vector: vector, Payload: payload})
	if err != nil {
		m.state.stats.InterruptOverflows++
		return err
	}

	m.state.stats.InterruptsRaised++

	return nil
}

// ScheduleDMA writes words into consecutive slots starting at register dst
// once the transfer completes.
func (m *Machine) ScheduleDMA(dst string, words []trit.Word) error {
	if len(words) == 0 {
		return simerr.New(simerr.KindShape, "core.ScheduleDMA", "no words to transfer")
	}

	ref, err := m.state.regs.lookup(dst)
	if err != nil {
		return err
	}

	if err = checkRange(&m.state, ref, len(words), dst); err != nil {
		return err
	}

	_, err = m.state.dma.schedule(m.state.Cycle, dmaTransfer{
		dst:     ref,
		dstName: m.state.regs.name(ref),
		count:   len(words),
		words:   append([]trit.Word(nil), words...),
	})
	if err != nil {
		return err
	}

	m.state.stats.DMAIssued++

	return nil
}

// DrainOutput removes and returns every word written by OUT.
func (m *Machine) DrainOutput() []trit.Word {
	out := m.state.outbox
	m.state.outbox = nil

	return out
}

// PeekOutput returns a copy of the outbox without draining it.
func (m *Machine) PeekOutput() []trit.Word {
	return slices.Clone(m.state.outbox)
}

// PendingOutput is the number of words waiting in the outbox.
func (m *Machine) PendingOutput() int {
	return len(m.state.outbox)
}

// Handle applies a DMA completion event.
func (m *Machine) Handle(e sim.Event) error {
	evt, ok := e.(dmaEvent)
	if !ok {
		return fmt.Errorf("core: unexpected event %T", e)
	}

	s := &m.state
	t := evt.transfer

	for k := 0; k < t.count; k++ {
		dst := slotRef{t.dst.tier, t.dst.index + k}

		name := t.dstName
		if k > 0 {
			name = s.regs.name(dst)
		}

		var w trit.Word
		if t.words != nil {
			w = t.words[k]
		} else {
			w = s.regs.read(slotRef{t.src.tier, t.src.index + k})
		}

		if err := s.regs.write(dst, name, w); err != nil {
			return err
		}
	}

	s.stats.DMACompleted++
	Trace("DMA complete", "Cycle", s.Cycle, "Dst", s.regs.name(t.dst), "Count", t.count)

	if _, bound := s.interrupts.vectors[DMAVector]; bound {
		err := s.interrupts.raise(interruptRequest{
			Vector:  DMAVector,
			Payload: trit.WordFromInt64(int64(t.count)),
		})
		if err != nil {
			s.stats.InterruptOverflows++
		} else {
			s.stats.InterruptsRaised++
		}
	}

	return nil
}

func (m *Machine) completeDMA() error {
	for _, evt := range m.state.dma.due(m.state.Cycle) {
		if err := evt.Handler().Handle(evt); err != nil {
			return err
		}
	}

	return nil
}

// Tick advances the machine by one cycle.
func (m *Machine) Tick() error {
	s := &m.state

	if s.program.Len() == 0 {
		return simerr.New(simerr.KindState, "core.Tick", "no program loaded")
	}

	if s.Halted {
		return simerr.New(simerr.KindState, "core.Tick", "machine is halted")
	}

	if err := m.completeDMA(); err != nil {
		return m.fault(s.PC, StageMemory, err)
	}

	if len(s.plan) == 0 {
		if err := m.issue(); err != nil {
			return err
		}
	}

	slot := s.plan[0]
	s.plan = s.plan[1:]

	slot.record.Cycle = s.Cycle
	s.trace.append(slot.record)
	s.Stage = slot.record.Stage

	if slot.record.Stall {
		s.stats.StallCycles++
	}

	s.Cycle++

	if slot.retire {
		s.Retired++
		m.retire()
	}

	return nil
}

// issue fetches, decodes and executes the instruction at the PC, and plans
// the cycles it occupies.
func (m *Machine) issue() error {
	s := &m.state

	if m.refreshDue() {
		return nil
	}

	pc := s.PC
	s.Stage = StageFetch

	inst, err := m.decode(pc)
	if err != nil {
		return m.fault(pc, StageDecode, err)
	}

	s.Stage = StageExecute
	s.touched = TierNone
	s.flushCycles = 0
	s.stallNote = ""
	s.PC = pc + 1

	if err := m.emu.RunInst(inst, s); err != nil {
		s.PC = pc
		return m.fault(pc, StageExecute, err)
	}

	if s.stallNote != "" {
		s.PC = pc
		s.plan = append(s.plan, cycleSlot{record: TraceRecord{
			PC:     pc,
			Opcode: inst.info.Name,
			Stage:  StageExecute,
			Stall:  true,
			Note:   s.stallNote,
		}})

		return nil
	}

	m.planInstruction(pc, inst)

	return nil
}

func (m *Machine) planInstruction(pc int, inst *decodedInst) {
	s := &m.state
	info := inst.info

	tierPenalty := 0
	if info.Class != ClassMemory && s.touched > TierHot {
		tierPenalty = m.cfg.tierLatency[s.touched-1] - 1
	}

	body := StageExecute
	if info.Class == ClassMemory {
		body = StageMemory
	}

	rec := func(stage Stage, stall bool, note string) cycleSlot {
		return cycleSlot{record: TraceRecord{
			PC:     pc,
			Opcode: info.Name,
			Stage:  stage,
			Tier:   s.touched,
			Stall:  stall,
			Note:   note,
		}}
	}

	for k := 0; k < info.Latency-1; k++ {
		s.plan = append(s.plan, rec(body, false, ""))
	}

	for k := 0; k < tierPenalty; k++ {
		s.plan = append(s.plan, rec(StageMemory, true, s.touched.String()+" tier access"))
	}

	for k := 0; k < s.flushCycles; k++ {
		s.plan = append(s.plan, rec(StageFetch, true, "mispredict flush"))
	}

	last := rec(StageRetire, false, "")
	last.retire = true
	s.plan = append(s.plan, last)
}

// refreshDue plans the working-tier refresh when it is due and reports
// whether it did.
func (m *Machine) refreshDue() bool {
	s := &m.state

	if m.cfg.refreshInterval <= 0 || m.cfg.refreshCycles <= 0 ||
		s.regs.count(TierWorking) == 0 || s.Cycle < s.nextRefresh {
		return false
	}

	s.nextRefresh = s.Cycle + uint64(m.cfg.refreshInterval)

	for k := 0; k < m.cfg.refreshCycles; k++ {
		s.plan = append(s.plan, cycleSlot{record: TraceRecord{
			PC:    s.PC,
			Stage: StageFetch,
			Tier:  TierWorking,
			Stall: true,
			Note:  "refresh",
		}})
	}

	s.stats.RefreshCycles += uint64(m.cfg.refreshCycles)

	return true
}

func (m *Machine) fault(pc int, stage Stage, err error) error {
	s := &m.state

	var inst Instruction
	if pc >= 0 && pc < s.program.Len() {
		inst = s.program.Instructions[pc]
	}

	s.trace.append(TraceRecord{
		Cycle:  s.Cycle,
		PC:     pc,
		Opcode: inst.Opcode,
		Stage:  stage,
		Stall:  true,
		Note:   err.Error(),
	})
	s.Stage = stage
	s.Cycle++
	s.Halted = true
	s.plan = nil

	f := &Fault{PC: pc, Instruction: inst, Cycle: s.Cycle - 1, Err: err}
	s.fault = f

	slog.Warn("core fault",
		"PC", pc,
		"Instruction", inst.String(),
		"Cycle", f.Cycle,
		"Error", err,
	)

	return f
}

// retire runs at every retirement boundary.
func (m *Machine) retire() {
	s := &m.state

	if s.halting {
		s.halting = false
		s.Halted = true
		slog.Info("core halted", "PC", s.PC-1, "Cycle", s.Cycle, "Retired", s.Retired)

		return
	}

	m.pollInterrupts()
}

func (m *Machine) pollInterrupts() {
	s := &m.state
	ic := &s.interrupts

	for ic.ready() {
		req := ic.pop()

		addr, ok := ic.vectors[req.Vector]
		if !ok {
			s.stats.InterruptsDropped++
			Trace("Interrupt dropped", "Vector", req.Vector, "Reason", "no handler")

			continue
		}

		ic.frames = append(ic.frames, interruptFrame{returnPC: s.PC, flags: s.Flags})
		ic.servicing = true
		s.idata = req.Payload
		s.ivec = trit.WordFromInt64(int64(req.Vector))
		s.stats.InterruptsTaken++

		Trace("Interrupt taken",
			"Vector", req.Vector,
			"ReturnPC", s.PC,
			"Handler", addr,
			"Cycle", s.Cycle,
		)

		s.PC = addr

		latency := isaByName["INT"].Latency
		for k := 0; k < latency; k++ {
			s.plan = append(s.plan, cycleSlot{record: TraceRecord{
				PC:     addr,
				Opcode: "INT",
				Stage:  StageFetch,
				Stall:  true,
				Note:   fmt.Sprintf("interrupt vector %d", req.Vector),
			}})
		}

		return
	}
}

// Step runs until the next instruction retires or the machine halts.
func (m *Machine) Step() error {
	s := &m.state
	if s.Halted {
		return simerr.New(simerr.KindState, "core.Step", "machine is halted")
	}

	before := s.Retired
	for k := 0; s.Retired == before && !s.Halted; k++ {
		if k >= stepLimit {
			return simerr.New(simerr.KindState, "core.Step",
				"no instruction retired within %d cycles", stepLimit)
		}

		if err := m.Tick(); err != nil {
			return err
		}
	}

	return nil
}

// Run ticks until the machine halts, faults, runs maxCycles cycles, or ctx
// is cancelled. A zero maxCycles means no limit. Cancellation is observed
// between instructions. Watchdog expiry and cancellation are not faults.
func (m *Machine) Run(ctx context.Context, maxCycles uint64) (Result, error) {
	s := &m.state

	startCycle, startRetired := s.Cycle, s.Retired
	result := func(r StopReason) Result {
		return Result{
			Reason:  r,
			Cycles:  s.Cycle - startCycle,
			Retired: s.Retired - startRetired,
			PC:      s.PC,
		}
	}

	if s.fault != nil {
		return result(StopFault), s.fault
	}

	if s.program.Len() == 0 {
		return result(StopFault), simerr.New(simerr.KindState, "core.Run",
			"no program loaded")
	}

	for {
		if s.Halted {
			return result(StopHalted), nil
		}

		if maxCycles > 0 && s.Cycle-startCycle >= maxCycles {
			Trace("Watchdog expired", "Cycle", s.Cycle, "PC", s.PC)
			return result(StopWatchdog), nil
		}

		if err := m.Tick(); err != nil {
			return result(StopFault), err
		}

		if len(s.plan) == 0 {
			if err := ctx.Err(); err != nil {
				return result(StopCancelled), err
			}
		}
	}
}
