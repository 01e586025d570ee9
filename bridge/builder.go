package bridge

import (
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// DefaultConversionLatency is the cycles a conversion takes in each
// direction.
const DefaultConversionLatency = 2

// Builder can create bridges.
type Builder struct {
	name         string
	ingressDepth int
	egressDepth  int
	latency      int
}

// MakeBuilder returns a builder with 1024-word FIFOs.
func MakeBuilder() Builder {
	return Builder{
		name:         "Bridge",
		ingressDepth: 1024,
		egressDepth:  1024,
		latency:      DefaultConversionLatency,
	}
}

// WithName sets the prefix of the FIFO names.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithIngressDepth sets the depth of the host-to-device FIFOs.
func (b Builder) WithIngressDepth(n int) Builder {
	b.ingressDepth = n
	return b
}

// WithEgressDepth sets the depth of the device-to-host FIFO.
func (b Builder) WithEgressDepth(n int) Builder {
	b.egressDepth = n
	return b
}

// WithConversionLatency sets the cycles a conversion takes.
func (b Builder) WithConversionLatency(n int) Builder {
	b.latency = n
	return b
}

// Validate checks the builder configuration.
func (b Builder) Validate() error {
	if b.ingressDepth < 1 || b.egressDepth < 1 {
		return simerr.New(simerr.KindConfiguration, "bridge.Build",
			"FIFO depths must be positive, got %d and %d",
			b.ingressDepth, b.egressDepth)
	}

	if b.latency < 1 {
		return simerr.New(simerr.KindConfiguration, "bridge.Build",
			"conversion latency must be positive, got %d", b.latency)
	}

	return nil
}

// Build creates the bridge.
func (b Builder) Build() (*Bridge, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	return &Bridge{
		latency: b.latency,
		ingress: NewFIFO[int64](b.name+".Ingress", b.ingressDepth),
		ready:   NewFIFO[trit.Word](b.name+".Ready", b.ingressDepth),
		egress:  NewFIFO[int64](b.name+".Egress", b.egressDepth),
	}, nil
}
