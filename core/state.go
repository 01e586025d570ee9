package core

import (
	"github.com/sarchlab/tritsim/trit"
)

// Flags is the status register.
type Flags struct {
	Sign     trit.Trit
	Carry    trit.Trit
	Overflow bool
}

// cycleSlot is one planned cycle of the sequencer.
type cycleSlot struct {
	record TraceRecord
	retire bool
}

type decodedOperand struct {
	reg    string
	imm    trit.Word
	isImm  bool
	target int
}

type decodedInst struct {
	info *OpInfo
	raw  Instruction
	args []decodedOperand
}

// machineState is everything the sequencer mutates. The emulator functions
// receive it by pointer.
type machineState struct {
	PC      int
	Flags   Flags
	Halted  bool
	Cycle   uint64
	Retired uint64

	Stage Stage

	idata   trit.Word
	ivec    trit.Word
	halting bool
	fault   *Fault

	program Program
	decoded []*decodedInst

	regs        regFile
	predictor   predictor
	dma         dmaEngine
	interrupts  interruptController
	callStack   []int
	outbox      []trit.Word
	plan        []cycleSlot
	nextRefresh uint64

	trace traceLog
	stats Stats

	// touched is the slowest tier accessed by the instruction being issued.
	touched Tier
	// flushCycles are misprediction stalls charged to the instruction being
	// issued.
	flushCycles int
	// stallNote, when set by an emulator function, stalls the issue for a
	// cycle instead of retiring the instruction.
	stallNote string
}

func (s *machineState) touch(t Tier) {
	if t > s.touched {
		s.touched = t
	}

	if t != TierNone {
		s.stats.TierAccesses[t-1]++
	}
}
