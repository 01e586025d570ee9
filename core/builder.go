package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/simerr"
)

// Builder can create machines and cores.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	hot, working, parking int
	tierLatency           [3]int

	refreshInterval int
	refreshCycles   int

	historyDepth      int
	mispredictPenalty int

	interruptDepth int
	dmaBandwidth   int
	dmaDepth       int
	outboxDepth    int
	traceCapacity  int

	maxCycles uint64
}

// MakeBuilder returns a builder with the default machine shape.
func MakeBuilder() Builder {
	return Builder{
		freq:              617 * sim.MHz,
		hot:               4,
		working:           16,
		parking:           32,
		tierLatency:       [3]int{1, 10, 100},
		refreshInterval:   1000,
		refreshCycles:     4,
		historyDepth:      8,
		mispredictPenalty: 2,
		interruptDepth:    16,
		dmaBandwidth:      1,
		dmaDepth:          8,
		outboxDepth:       64,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithHotRegisters sets the hot tier size, 2 to 4.
func (b Builder) WithHotRegisters(n int) Builder {
	b.hot = n
	return b
}

// WithWorkingRegisters sets the working tier size, 8 to 16.
func (b Builder) WithWorkingRegisters(n int) Builder {
	b.working = n
	return b
}

// WithParkingRegisters sets the parking tier size, at least 32.
func (b Builder) WithParkingRegisters(n int) Builder {
	b.parking = n
	return b
}

// WithTierLatencies sets the access latency in cycles of each tier.
func (b Builder) WithTierLatencies(hot, working, parking int) Builder {
	b.tierLatency = [3]int{hot, working, parking}
	return b
}

// WithRefresh makes the working tier steal cycles stall cycles every
// interval cycles. A zero interval disables refresh.
func (b Builder) WithRefresh(interval, cycles int) Builder {
	b.refreshInterval = interval
	b.refreshCycles = cycles

	return b
}

// WithHistoryDepth sets how many outcomes the predictor keeps per branch.
func (b Builder) WithHistoryDepth(n int) Builder {
	b.historyDepth = n
	return b
}

// WithMispredictPenalty sets the stall cycles charged per misprediction.
func (b Builder) WithMispredictPenalty(n int) Builder {
	b.mispredictPenalty = n
	return b
}

// WithInterruptQueueDepth bounds the pending interrupt queue.
func (b Builder) WithInterruptQueueDepth(n int) Builder {
	b.interruptDepth = n
	return b
}

// WithDMABandwidth sets the words a DMA transfer moves per cycle.
func (b Builder) WithDMABandwidth(n int) Builder {
	b.dmaBandwidth = n
	return b
}

// WithDMAQueueDepth bounds the number of transfers in flight.
func (b Builder) WithDMAQueueDepth(n int) Builder {
	b.dmaDepth = n
	return b
}

// WithOutboxDepth bounds the words OUT can buffer.
func (b Builder) WithOutboxDepth(n int) Builder {
	b.outboxDepth = n
	return b
}

// WithTraceCapacity keeps only the most recent n trace records. Zero keeps
// every record.
func (b Builder) WithTraceCapacity(n int) Builder {
	b.traceCapacity = n
	return b
}

// WithMaxCycles stops a core built by Build after n cycles. Zero means no
// limit. Machine.Run takes its own limit.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

func configErr(format string, args ...any) error {
	return simerr.New(simerr.KindConfiguration, "core.Build", format, args...)
}

// Validate checks the builder configuration.
func (b Builder) Validate() error {
	switch {
	case b.hot < 2 || b.hot > len(hotNames):
		return configErr("hot tier needs 2 to %d registers, got %d", len(hotNames), b.hot)
	case b.working < 8 || b.working > 16:
		return configErr("working tier needs 8 to 16 registers, got %d", b.working)
	case b.parking < 32:
		return configErr("parking tier needs at least 32 registers, got %d", b.parking)
	case b.historyDepth < 1:
		return configErr("history depth must be positive, got %d", b.historyDepth)
	case b.mispredictPenalty < 0:
		return configErr("mispredict penalty must not be negative, got %d", b.mispredictPenalty)
	case b.interruptDepth < 1:
		return configErr("interrupt queue depth must be positive, got %d", b.interruptDepth)
	case b.dmaBandwidth < 1 || b.dmaDepth < 1:
		return configErr("DMA bandwidth and queue depth must be positive")
	case b.outboxDepth < 1:
		return configErr("outbox depth must be positive, got %d", b.outboxDepth)
	case b.refreshInterval < 0 || b.refreshCycles < 0:
		return configErr("refresh interval and cost must not be negative")
	case b.traceCapacity < 0:
		return configErr("trace capacity must not be negative")
	}

	for i, l := range b.tierLatency {
		if l < 1 {
			return configErr("%s tier latency must be positive, got %d", Tier(i+1), l)
		}
	}

	return nil
}

// BuildMachine creates a machine with no program loaded.
func (b Builder) BuildMachine() (*Machine, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		cfg: b,
		emu: newInstEmulator(b.mispredictPenalty, b.outboxDepth),
	}

	m.state = machineState{
		Stage:      StageReset,
		regs:       newRegFile(b.hot, b.working, b.parking),
		predictor:  newPredictor(b.historyDepth),
		dma:        newDMAEngine(b.dmaBandwidth, b.dmaDepth, m),
		interrupts: newInterruptController(b.interruptDepth),
		trace:      traceLog{capacity: b.traceCapacity},
	}
	m.state.nextRefresh = uint64(b.refreshInterval)

	return m, nil
}

// Build creates a core driven by the engine. It panics if the
// configuration is invalid; call Validate first to get an error instead.
func (b Builder) Build(name string) *Core {
	m, err := b.BuildMachine()
	if err != nil {
		panic(err)
	}

	c := &Core{machine: m, maxCycles: b.maxCycles}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	return c
}
