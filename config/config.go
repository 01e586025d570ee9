// Package config loads platform configuration and builds the simulated
// ternary platform from it.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/bridge"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/matrix"
	"github.com/sarchlab/tritsim/simerr"
)

// Config describes a whole platform.
type Config struct {
	Sim    SimConfig    `toml:"sim"`
	Core   CoreConfig   `toml:"core"`
	Matrix MatrixConfig `toml:"matrix"`
	Bridge BridgeConfig `toml:"bridge"`
}

// SimConfig holds the engine-wide settings.
type SimConfig struct {
	ClockMHz  float64 `toml:"clock-mhz"`
	MaxCycles uint64  `toml:"max-cycles"`
}

// CoreConfig shapes the ISA core.
type CoreConfig struct {
	HotRegisters        int   `toml:"hot-registers"`
	WorkingRegisters    int   `toml:"working-registers"`
	ParkingRegisters    int   `toml:"parking-registers"`
	TierLatencies       []int `toml:"tier-latencies"`
	RefreshInterval     int   `toml:"refresh-interval"`
	RefreshCycles       int   `toml:"refresh-cycles"`
	HistoryDepth        int   `toml:"history-depth"`
	MispredictPenalty   int   `toml:"mispredict-penalty"`
	InterruptQueueDepth int   `toml:"interrupt-queue-depth"`
	DMABandwidth        int   `toml:"dma-bandwidth"`
	DMAQueueDepth       int   `toml:"dma-queue-depth"`
	OutboxDepth         int   `toml:"outbox-depth"`
	TraceCapacity       int   `toml:"trace-capacity"`
}

// MatrixConfig shapes the matrix simulator.
type MatrixConfig struct {
	ArraySize     int `toml:"array-size"`
	TritsPerValue int `toml:"trits-per-value"`
}

// BridgeConfig shapes the host bridge.
type BridgeConfig struct {
	IngressDepth      int `toml:"ingress-depth"`
	EgressDepth       int `toml:"egress-depth"`
	ConversionLatency int `toml:"conversion-latency"`
}

// DefaultConfig returns the configuration of the reference platform.
func DefaultConfig() Config {
	return Config{
		Sim: SimConfig{
			ClockMHz:  matrix.DefaultClockMHz,
			MaxCycles: 1_000_000,
		},
		Core: CoreConfig{
			HotRegisters:        4,
			WorkingRegisters:    16,
			ParkingRegisters:    32,
			TierLatencies:       []int{1, 10, 100},
			RefreshInterval:     1000,
			RefreshCycles:       4,
			HistoryDepth:        8,
			MispredictPenalty:   2,
			InterruptQueueDepth: 16,
			DMABandwidth:        1,
			DMAQueueDepth:       8,
			OutboxDepth:         64,
		},
		Matrix: MatrixConfig{
			ArraySize:     9,
			TritsPerValue: matrix.DefaultTritsPerValue,
		},
		Bridge: BridgeConfig{
			IngressDepth:      1024,
			EgressDepth:       1024,
			ConversionLatency: bridge.DefaultConversionLatency,
		},
	}
}

// Parse reads TOML on top of the defaults and validates the result. Keys
// that are absent keep their default values.
func Parse(data []byte) (Config, error) {
	c := DefaultConfig()

	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return Config{}, simerr.Wrap(simerr.KindConfiguration, "config.Parse", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, simerr.New(simerr.KindConfiguration, "config.Parse",
			"unknown key %q", undecoded[0].String())
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Load reads a TOML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, simerr.Wrap(simerr.KindConfiguration, "config.Load",
			fmt.Errorf("cannot read %s: %w", path, err))
	}

	return Parse(data)
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Freq is the platform clock.
func (c Config) Freq() sim.Freq {
	return sim.Freq(c.Sim.ClockMHz) * sim.MHz
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Sim.ClockMHz <= 0 {
		return simerr.New(simerr.KindConfiguration, "config.Validate",
			"clock must be positive, got %g MHz", c.Sim.ClockMHz)
	}

	if len(c.Core.TierLatencies) != 3 {
		return simerr.New(simerr.KindConfiguration, "config.Validate",
			"tier-latencies needs 3 entries, got %d", len(c.Core.TierLatencies))
	}

	if err := c.CoreBuilder().Validate(); err != nil {
		return err
	}

	if err := c.MatrixBuilder().Validate(); err != nil {
		return err
	}

	return c.BridgeBuilder().Validate()
}

// CoreBuilder translates the core section.
func (c Config) CoreBuilder() core.Builder {
	cc := c.Core

	b := core.MakeBuilder().
		WithFreq(c.Freq()).
		WithHotRegisters(cc.HotRegisters).
		WithWorkingRegisters(cc.WorkingRegisters).
		WithParkingRegisters(cc.ParkingRegisters).
		WithRefresh(cc.RefreshInterval, cc.RefreshCycles).
		WithHistoryDepth(cc.HistoryDepth).
		WithMispredictPenalty(cc.MispredictPenalty).
		WithInterruptQueueDepth(cc.InterruptQueueDepth).
		WithDMABandwidth(cc.DMABandwidth).
		WithDMAQueueDepth(cc.DMAQueueDepth).
		WithOutboxDepth(cc.OutboxDepth).
		WithTraceCapacity(cc.TraceCapacity).
		WithMaxCycles(c.Sim.MaxCycles)

	if len(cc.TierLatencies) == 3 {
		b = b.WithTierLatencies(cc.TierLatencies[0], cc.TierLatencies[1],
			cc.TierLatencies[2])
	}

	return b
}

// MatrixBuilder translates the matrix section.
func (c Config) MatrixBuilder() matrix.Builder {
	return matrix.MakeBuilder().
		WithArraySize(c.Matrix.ArraySize).
		WithTritsPerValue(c.Matrix.TritsPerValue).
		WithClockMHz(c.Sim.ClockMHz)
}

// BridgeBuilder translates the bridge section.
func (c Config) BridgeBuilder() bridge.Builder {
	return bridge.MakeBuilder().
		WithIngressDepth(c.Bridge.IngressDepth).
		WithEgressDepth(c.Bridge.EgressDepth).
		WithConversionLatency(c.Bridge.ConversionLatency)
}
