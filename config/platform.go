package config

import (
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/api"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/matrix"
)

// A Platform is a host driver, its bridge, one ISA core, and a matrix
// simulator sharing an engine.
type Platform struct {
	Config Config
	Engine sim.Engine
	Driver api.Driver
	Core   *core.Core
	Matrix *matrix.Simulator
}

// PlatformBuilder can build platforms.
type PlatformBuilder struct {
	engine  sim.Engine
	config  *Config
	monitor *monitoring.Monitor
}

// WithEngine sets the engine that drives the platform. A serial engine is
// created when none is given.
func (b PlatformBuilder) WithEngine(engine sim.Engine) PlatformBuilder {
	b.engine = engine
	return b
}

// WithConfig sets the configuration. DefaultConfig() is used when none is given.
func (b PlatformBuilder) WithConfig(c Config) PlatformBuilder {
	b.config = &c
	return b
}

// WithMonitor sets the monitor that watches the engine and components.
func (b PlatformBuilder) WithMonitor(monitor *monitoring.Monitor) PlatformBuilder {
	b.monitor = monitor
	return b
}

// Build creates the platform.
func (b PlatformBuilder) Build(name string) (*Platform, error) {
	cfg := DefaultConfig()
	if b.config != nil {
		cfg = *b.config
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := b.engine
	if engine == nil {
		engine = sim.NewSerialEngine()
	}

	br, err := cfg.BridgeBuilder().WithName(name + ".Bridge").Build()
	if err != nil {
		return nil, err
	}

	m, err := cfg.MatrixBuilder().Build()
	if err != nil {
		return nil, err
	}

	driver := api.DriverBuilder{}.
		WithEngine(engine).
		WithFreq(cfg.Freq()).
		WithBridge(br).
		Build(name + ".Driver")

	c := cfg.CoreBuilder().
		WithEngine(engine).
		Build(name + ".Core")

	driver.RegisterDevice(c)

	if b.monitor != nil {
		b.monitor.RegisterEngine(engine)
		b.monitor.RegisterComponent(driver)
		b.monitor.RegisterComponent(c)
	}

	return &Platform{
		Config: cfg,
		Engine: engine,
		Driver: driver,
		Core:   c,
		Matrix: m,
	}, nil
}

// RunProgram maps p, feeds in the host words, and collects outputs words
// of results.
func (p *Platform) RunProgram(prog core.Program, in []int64, outputs int) ([]int64, error) {
	if err := p.Driver.MapProgram(prog); err != nil {
		return nil, err
	}

	out := make([]int64, outputs)
	p.Driver.FeedIn(in)
	p.Driver.Collect(out)

	if err := p.Driver.Run(); err != nil {
		return out, err
	}

	return out, nil
}
