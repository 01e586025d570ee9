package api

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/bridge"
)

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	engine sim.Engine
	freq   sim.Freq
	bridge *bridge.Bridge
}

// WithEngine sets the engine.
func (b DriverBuilder) WithEngine(engine sim.Engine) DriverBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the driver.
func (b DriverBuilder) WithFreq(freq sim.Freq) DriverBuilder {
	b.freq = freq
	return b
}

// WithBridge sets the bridge between the host and the device. A bridge
// with default depths and latency is used when none is given.
func (b DriverBuilder) WithBridge(br *bridge.Bridge) DriverBuilder {
	b.bridge = br
	return b
}

// Build create a driver.
func (b DriverBuilder) Build(name string) Driver {
	br := b.bridge
	if br == nil {
		var err error

		br, err = bridge.MakeBuilder().WithName(name + ".Bridge").Build()
		if err != nil {
			panic(err)
		}
	}

	d := &driverImpl{bridge: br}
	d.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, d)

	return d
}
