package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

func quietBuilder() Builder {
	return MakeBuilder().WithRefresh(0, 0)
}

func buildMachine(b Builder, src string) *Machine {
	m, err := b.BuildMachine()
	Expect(err).NotTo(HaveOccurred())
	Expect(m.LoadProgram(MustParseProgram("test", src))).To(Succeed())

	return m
}

func runToHalt(m *Machine) Result {
	res, err := m.Run(context.Background(), 100000)
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Reason).To(Equal(StopHalted))

	return res
}

func reg(m *Machine, name string) int64 {
	w, err := m.Register(name)
	Expect(err).NotTo(HaveOccurred())

	return value(w)
}

var _ = Describe("Machine", func() {
	Context("arithmetic programs", func() {
		It("should run one trit-adder cycle on A and B", func() {
			m := buildMachine(quietBuilder(), "SET A, 1\nSET B, 1\nADD\nHALT")
			runToHalt(m)

			Expect(reg(m, "ACC")).To(Equal(int64(-1)))
			Expect(reg(m, "CARRY")).To(Equal(int64(1)))
			Expect(m.Flags().Carry).To(Equal(trit.Pos))
		})

		It("should add 5 and 3", func() {
			m := buildMachine(quietBuilder(), "LDI ACC, 5\nLDI TMP, 3\nADD ACC, TMP\nHALT")
			res := runToHalt(m)

			Expect(reg(m, "ACC")).To(Equal(int64(8)))
			Expect(res.Cycles).To(Equal(uint64(4)))
			Expect(res.Retired).To(Equal(uint64(4)))
		})

		DescribeTable("sums to zero",
			func(a, b int64) {
				m := buildMachine(quietBuilder(),
					fmt.Sprintf("LDI A, %d\nLDI B, %d\nADD A, B\nHALT", a, b))
				runToHalt(m)

				Expect(reg(m, "A")).To(BeZero())
				Expect(m.Flags().Sign).To(Equal(trit.Zero))
			},
			Entry("-1 + 1", int64(-1), int64(1)),
			Entry("13 + -13", int64(13), int64(-13)),
		)

		It("should compute 5! in a loop", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, 1
        LDI R0, 5
loop:   LDI TMP, 0
        CMP R0, TMP
        BRZ done
        MUL ACC, R0
        LDI TMP, 1
        SUB R0, TMP
        JMP loop
done:   HALT
`)
			runToHalt(m)

			Expect(reg(m, "ACC")).To(Equal(int64(120)))
			Expect(reg(m, "R0")).To(BeZero())
			Expect(m.Stats().Branches).To(Equal(uint64(6)))
		})

		It("should fault on division by zero", func() {
			m := buildMachine(quietBuilder(), "LDI ACC, 4\nLDI TMP, 0\nDIV ACC, TMP\nHALT")

			_, err := m.Run(context.Background(), 100)

			var f *Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.PC).To(Equal(2))
			Expect(f.Instruction.Opcode).To(Equal("DIV"))
			Expect(errors.Is(err, simerr.ErrArithmetic)).To(BeTrue())
			Expect(m.Halted()).To(BeTrue())
		})

		It("should call and return", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, 2
        CALL double
        HALT
double: ADD ACC, ACC
        RET
`)
			runToHalt(m)
			Expect(reg(m, "ACC")).To(Equal(int64(4)))
		})

		It("should halt on a return from the top level", func() {
			m := buildMachine(quietBuilder(), "RET\nNOP")
			runToHalt(m)
			Expect(m.Stats().Retired).To(Equal(uint64(1)))
		})
	})

	Context("branches", func() {
		It("should classify -7 with a three-way branch", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, -7
        TST ACC
        BR3 neg, zero, pos
        HALT
neg:    LDI A, -1
        JMP end
zero:   LDI A, 0
        JMP end
pos:    LDI A, 1
end:    HALT
`)
			runToHalt(m)
			Expect(reg(m, "A")).To(Equal(int64(-1)))
		})

		It("should stall on a misprediction", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, 0
        TST ACC
        BRZ done
        NOP
done:   HALT
`)
			res := runToHalt(m)

			Expect(res.Cycles).To(Equal(uint64(1 + 1 + 2 + 2 + 1)))
			st := m.Stats()
			Expect(st.Mispredictions).To(Equal(uint64(1)))
			Expect(st.Flushes).To(Equal(uint64(1)))

			flushes := 0
			for _, r := range m.Trace() {
				if r.Note == "mispredict flush" {
					Expect(r.Stall).To(BeTrue())
					flushes++
				}
			}
			Expect(flushes).To(Equal(2))
		})

		It("should learn a loop branch", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, 5
loop:   SUB ACC, 1
        BRP loop
        HALT
`)
			runToHalt(m)

			st := m.Stats()
			Expect(st.Branches).To(Equal(uint64(5)))
			Expect(st.Mispredictions).To(Equal(uint64(2)))
		})
	})

	Context("register tiers", func() {
		It("should migrate a value through every tier", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, 42
        ST1 ACC, TMP
        LD1 A, TMP
        ST2 A, R5
        LD2 B, R5
        ST3 B, P10
        LDI ACC, 0
        LD3 ACC, P10
        HALT
`)
			runToHalt(m)

			Expect(reg(m, "ACC")).To(Equal(int64(42)))
			Expect(reg(m, "R5")).To(Equal(int64(42)))
			Expect(reg(m, "P10")).To(Equal(int64(42)))
		})

		It("should reject a load from the wrong tier", func() {
			m := buildMachine(quietBuilder(), "LD2 ACC, P0\nHALT")

			_, err := m.Run(context.Background(), 100)
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})

		It("should charge slow-tier latency", func() {
			m := buildMachine(quietBuilder(), "LDI R0, 1\nHALT")
			res := runToHalt(m)

			Expect(res.Cycles).To(Equal(uint64(11)))

			tr := m.Trace()
			Expect(tr).To(HaveLen(11))
			Expect(tr[0].Stage).To(Equal(StageMemory))
			Expect(tr[0].Tier).To(Equal(TierWorking))
			Expect(tr[0].Stall).To(BeTrue())
			Expect(tr[9].Stage).To(Equal(StageRetire))
			Expect(tr[10].Opcode).To(Equal("HALT"))
		})

		It("should allocate virtual registers", func() {
			m := buildMachine(quietBuilder(), `
        LDI %x, 5
        LDI %y, 6
        ADD %x, %y
        OUT %x
        FREE %y
        HALT
`)
			runToHalt(m)

			Expect(reg(m, "%x")).To(Equal(int64(11)))
			Expect(reg(m, "ACC")).To(Equal(int64(11)))
			Expect(m.PeekOutput()).To(HaveLen(1))
			Expect(m.PendingOutput()).To(Equal(1))
			Expect(value(m.DrainOutput()[0])).To(Equal(int64(11)))
			Expect(m.PendingOutput()).To(BeZero())

			used, _ := m.TierUsage()
			Expect(used[0]).To(Equal(1))
		})

		It("should spill virtual registers past the hot tier", func() {
			m := buildMachine(quietBuilder(), `
        LDI ACC, 1
        LDI TMP, 1
        LDI A, 1
        LDI B, 1
        LDI %v, 9
        HALT
`)
			runToHalt(m)

			Expect(reg(m, "%v")).To(Equal(int64(9)))
			Expect(reg(m, "R0")).To(Equal(int64(9)))
		})

		It("should not place virtual registers on registers the program names", func() {
			m := buildMachine(quietBuilder(), "LDI %x, 5\nLDI ACC, 7\nHALT")
			runToHalt(m)

			Expect(reg(m, "%x")).To(Equal(int64(5)))
			Expect(reg(m, "ACC")).To(Equal(int64(7)))
			Expect(reg(m, "TMP")).To(Equal(int64(5)))
		})

		It("should keep the trit adder's registers away from virtual registers", func() {
			m := buildMachine(quietBuilder(), "LDI %x, 40\nSET A, 1\nSET B, 1\nADD\nHALT")
			runToHalt(m)

			Expect(reg(m, "%x")).To(Equal(int64(40)))
			Expect(reg(m, "ACC")).To(Equal(int64(-1)))
			Expect(reg(m, "CARRY")).To(Equal(int64(1)))
		})

		It("should refuse a host write to a register held by a virtual register", func() {
			m := buildMachine(quietBuilder(), "LDI %x, 5\nHALT")
			runToHalt(m)

			err := m.SetRegister("ACC", word(9))
			Expect(errors.Is(err, simerr.ErrState)).To(BeTrue())
			Expect(reg(m, "%x")).To(Equal(int64(5)))
		})

		It("should fault when a transfer lands on a register held by a virtual register", func() {
			m := buildMachine(quietBuilder(), `
        LDI %x, 5
        NOP
        NOP
        HALT
`)
			Expect(m.Step()).To(Succeed())
			Expect(m.ScheduleDMA("ACC", []trit.Word{word(9)})).To(Succeed())

			_, err := m.Run(context.Background(), 100)

			var f *Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(errors.Is(err, simerr.ErrState)).To(BeTrue())
			Expect(reg(m, "%x")).To(Equal(int64(5)))
		})

		It("should fault when every tier is exhausted", func() {
			var sb strings.Builder
			for i := 0; i <= 2+8+32; i++ {
				fmt.Fprintf(&sb, "LDI %%v%d, %d\n", i, i)
			}
			sb.WriteString("HALT\n")

			b := quietBuilder().
				WithHotRegisters(2).
				WithWorkingRegisters(8).
				WithParkingRegisters(32).
				WithTierLatencies(1, 1, 1)
			m := buildMachine(b, sb.String())

			_, err := m.Run(context.Background(), 10000)

			var f *Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.PC).To(Equal(42))
			Expect(errors.Is(err, simerr.ErrResourceExhaustion)).To(BeTrue())
		})

		It("should steal cycles for working-tier refresh", func() {
			b := MakeBuilder().WithRefresh(5, 2)
			m := buildMachine(b, "NOP\nNOP\nNOP\nNOP\nNOP\nNOP\nHALT")
			res := runToHalt(m)

			st := m.Stats()
			Expect(st.RefreshCycles).To(Equal(uint64(2)))
			Expect(res.Cycles).To(Equal(uint64(9)))
		})
	})

	Context("faults and stops", func() {
		It("should fault at decode on an invalid opcode", func() {
			m := buildMachine(quietBuilder(), "LDI ACC, 1\nFROB ACC\nHALT")

			res, err := m.Run(context.Background(), 100)
			Expect(res.Reason).To(Equal(StopFault))

			var f *Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.PC).To(Equal(1))
			Expect(f.Cycle).To(Equal(uint64(1)))
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())

			tr := m.Trace()
			Expect(tr).To(HaveLen(2))
			Expect(tr[1].Stage).To(Equal(StageDecode))
			Expect(tr[1].PC).To(Equal(1))
			Expect(m.Fault()).To(Equal(f))
		})

		It("should decode opcodes given as trit encodings", func() {
			m := buildMachine(quietBuilder(), "0t00T1 ACC, 3\n0tTTTT")
			runToHalt(m)
			Expect(reg(m, "ACC")).To(Equal(int64(3)))
		})

		It("should fault when running past the program", func() {
			m := buildMachine(quietBuilder(), "NOP")

			_, err := m.Run(context.Background(), 100)
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})

		It("should fault on a branch outside the program", func() {
			m := buildMachine(quietBuilder(), "JMP 7\nHALT")

			_, err := m.Run(context.Background(), 100)
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})

		It("should stop on the watchdog without faulting", func() {
			m := buildMachine(quietBuilder(), "loop: JMP loop")

			res, err := m.Run(context.Background(), 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(StopWatchdog))
			Expect(res.Cycles).To(Equal(uint64(50)))
			Expect(m.Halted()).To(BeFalse())

			res, err = m.Run(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(StopWatchdog))
		})

		It("should stop between instructions when cancelled", func() {
			m := buildMachine(quietBuilder(), "loop: JMP loop")

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := m.Run(ctx, 0)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(res.Reason).To(Equal(StopCancelled))
			Expect(res.Retired).To(Equal(uint64(1)))
			Expect(res.Cycles).To(Equal(uint64(2)))
		})

		It("should refuse to tick without a program", func() {
			m, err := quietBuilder().BuildMachine()
			Expect(err).NotTo(HaveOccurred())
			Expect(errors.Is(m.Tick(), simerr.ErrState)).To(BeTrue())
		})

		It("should refuse to step once halted", func() {
			m := buildMachine(quietBuilder(), "HALT")
			runToHalt(m)
			Expect(errors.Is(m.Step(), simerr.ErrState)).To(BeTrue())
		})
	})

	Context("stepping", func() {
		It("should advance one instruction per step", func() {
			m := buildMachine(quietBuilder(), "LDI ACC, 5\nMUL ACC, ACC\nHALT")

			Expect(m.Step()).To(Succeed())
			Expect(m.Cycle()).To(Equal(uint64(1)))
			Expect(m.PC()).To(Equal(1))

			Expect(m.Step()).To(Succeed())
			Expect(m.Cycle()).To(Equal(uint64(4)))
			Expect(reg(m, "ACC")).To(Equal(int64(25)))

			Expect(m.Step()).To(Succeed())
			Expect(m.Halted()).To(BeTrue())
		})

		It("should reset to the start of the program", func() {
			m := buildMachine(quietBuilder(), "LDI ACC, 5\nHALT")
			runToHalt(m)

			m.Reset()
			Expect(m.Halted()).To(BeFalse())
			Expect(m.PC()).To(BeZero())
			Expect(m.Trace()).To(BeEmpty())
			Expect(reg(m, "ACC")).To(BeZero())

			runToHalt(m)
			Expect(reg(m, "ACC")).To(Equal(int64(5)))
		})

		It("should record one trace entry per cycle", func() {
			m := buildMachine(quietBuilder(), "LDI ACC, 2\nMUL ACC, ACC\nHALT")
			runToHalt(m)

			tr := m.Trace()
			Expect(tr).To(HaveLen(5))
			for i, r := range tr {
				Expect(r.Cycle).To(Equal(uint64(i)))
			}

			Expect(tr[1].Opcode).To(Equal("MUL"))
			Expect(tr[1].Stage).To(Equal(StageExecute))
			Expect(tr[3].Stage).To(Equal(StageRetire))
		})

		It("should keep only the most recent records when bounded", func() {
			m := buildMachine(quietBuilder().WithTraceCapacity(3), "loop: JMP loop")

			_, err := m.Run(context.Background(), 40)
			Expect(err).NotTo(HaveOccurred())

			tr := m.Trace()
			Expect(tr).To(HaveLen(3))
			Expect(tr[2].Cycle).To(Equal(uint64(39)))
		})
	})

	Context("interrupts", func() {
		const handlerProgram = `
.vector 1 handler
        NOP
        NOP
        NOP
        HALT
handler:
        MOV ACC, IDATA
        OUT ACC
        IRET
`

		It("should enter the handler and return", func() {
			m := buildMachine(quietBuilder(), handlerProgram)
			Expect(m.RaiseInterrupt(1, word(42))).To(Succeed())

			res := runToHalt(m)

			Expect(reg(m, "ACC")).To(Equal(int64(42)))
			Expect(reg(m, "IVEC")).To(Equal(int64(1)))
			out := m.DrainOutput()
			Expect(out).To(HaveLen(1))
			Expect(value(out[0])).To(Equal(int64(42)))

			Expect(res.Cycles).To(Equal(uint64(11)))
			Expect(res.Retired).To(Equal(uint64(7)))
			Expect(m.Stats().InterruptsTaken).To(Equal(uint64(1)))
		})

		It("should hold interrupts while disabled", func() {
			m := buildMachine(quietBuilder(), `
.vector 1 handler
        DI
        NOP
        HALT
handler:
        LDI ACC, 9
        IRET
`)
			Expect(m.RaiseInterrupt(1, word(0))).To(Succeed())
			runToHalt(m)

			Expect(reg(m, "ACC")).To(BeZero())
			Expect(m.Stats().InterruptsTaken).To(BeZero())
		})

		It("should take a software interrupt", func() {
			m := buildMachine(quietBuilder(), `
.vector 3 handler
        LDI A, 7
        INT 3, A
        HALT
handler:
        MOV B, IDATA
        IRET
`)
			runToHalt(m)
			Expect(reg(m, "B")).To(Equal(int64(7)))
		})

		It("should apply backpressure when the queue is full", func() {
			m := buildMachine(quietBuilder().WithInterruptQueueDepth(2), handlerProgram)

			Expect(m.RaiseInterrupt(1, word(1))).To(Succeed())
			Expect(m.RaiseInterrupt(1, word(2))).To(Succeed())

			err := m.RaiseInterrupt(1, word(3))
			Expect(errors.Is(err, simerr.ErrBackpressure)).To(BeTrue())
			Expect(simerr.IsRetryable(err)).To(BeTrue())
			Expect(m.Stats().InterruptOverflows).To(Equal(uint64(1)))
		})

		It("should drop interrupts without a handler", func() {
			m := buildMachine(quietBuilder(), "NOP\nHALT")
			Expect(m.RaiseInterrupt(5, word(1))).To(Succeed())

			runToHalt(m)
			Expect(m.Stats().InterruptsDropped).To(Equal(uint64(1)))
		})

		It("should fault on IRET outside a handler", func() {
			m := buildMachine(quietBuilder(), "IRET")

			_, err := m.Run(context.Background(), 10)
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})
	})

	Context("DMA and output", func() {
		It("should land a transfer after count/bandwidth cycles", func() {
			b := quietBuilder().WithTierLatencies(1, 1, 1)
			m := buildMachine(b, `
        LDI P0, 7
        LDI P1, 8
        DMA R0, P0, 2
        NOP
        NOP
        HALT
`)
			for i := 0; i < 4; i++ {
				Expect(m.Tick()).To(Succeed())
			}
			Expect(reg(m, "R0")).To(BeZero())

			Expect(m.Tick()).To(Succeed())
			Expect(reg(m, "R0")).To(Equal(int64(7)))
			Expect(reg(m, "R1")).To(Equal(int64(8)))

			runToHalt(m)
			Expect(m.Stats().DMACompleted).To(Equal(uint64(1)))
		})

		It("should raise the completion interrupt when bound", func() {
			b := quietBuilder().WithTierLatencies(1, 1, 1)
			m := buildMachine(b, `
.vector 0 done
        DMA R0, P0, 3
wait:   JMP wait
done:   MOV ACC, IDATA
        HALT
`)
			runToHalt(m)
			Expect(reg(m, "ACC")).To(Equal(int64(3)))
		})

		It("should accept transfers from outside the core", func() {
			b := quietBuilder().WithTierLatencies(1, 1, 1)
			m := buildMachine(b, "NOP\nNOP\nNOP\nHALT")

			Expect(m.ScheduleDMA("P4", []trit.Word{word(-5), word(6)})).To(Succeed())
			runToHalt(m)

			Expect(reg(m, "P4")).To(Equal(int64(-5)))
			Expect(reg(m, "P5")).To(Equal(int64(6)))
		})

		It("should reject transfers past the end of a tier", func() {
			m := buildMachine(quietBuilder(), "HALT")

			err := m.ScheduleDMA("R15", []trit.Word{word(1), word(2)})
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})

		It("should apply backpressure when the DMA queue is full", func() {
			m := buildMachine(quietBuilder().WithDMAQueueDepth(1), "HALT")

			Expect(m.ScheduleDMA("P0", []trit.Word{word(1)})).To(Succeed())
			err := m.ScheduleDMA("P1", []trit.Word{word(1)})
			Expect(errors.Is(err, simerr.ErrBackpressure)).To(BeTrue())
		})

		It("should stall OUT while the outbox is full", func() {
			m := buildMachine(quietBuilder().WithOutboxDepth(1), "OUT 1\nOUT 2\nHALT")

			res, err := m.Run(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(StopWatchdog))
			Expect(m.PC()).To(Equal(1))
			Expect(m.Trace()[5].Note).To(Equal("outbox full"))

			Expect(m.DrainOutput()).To(HaveLen(1))
			runToHalt(m)
			Expect(value(m.DrainOutput()[0])).To(Equal(int64(2)))
		})
	})

	Context("builder", func() {
		It("should reject tier sizes outside their ranges", func() {
			for _, b := range []Builder{
				MakeBuilder().WithHotRegisters(1),
				MakeBuilder().WithHotRegisters(5),
				MakeBuilder().WithWorkingRegisters(7),
				MakeBuilder().WithWorkingRegisters(17),
				MakeBuilder().WithParkingRegisters(31),
				MakeBuilder().WithTierLatencies(1, 0, 1),
				MakeBuilder().WithHistoryDepth(0),
			} {
				_, err := b.BuildMachine()
				Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())
			}
		})

		It("should render state and stats", func() {
			m := buildMachine(quietBuilder(), "LDI %x, 5\nLDI R3, 2\nHALT")
			runToHalt(m)

			s := RenderState(m)
			Expect(s).To(ContainSubstring("%x -> ACC"))
			Expect(s).To(ContainSubstring("R3"))
			Expect(RenderStats(m.Stats())).To(ContainSubstring("Retired"))
		})
	})
})
