package matrix

import (
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// DefaultTritsPerValue is the quantization width used when none is given.
const DefaultTritsPerValue = 5

// DefaultClockMHz is the array clock used for throughput figures.
const DefaultClockMHz = 617.0

// Builder can create matrix simulators.
type Builder struct {
	arraySize     int
	tritsPerValue int
	clockMHz      float64
}

// MakeBuilder returns a builder with the default quantization and clock.
func MakeBuilder() Builder {
	return Builder{
		tritsPerValue: DefaultTritsPerValue,
		clockMHz:      DefaultClockMHz,
	}
}

// WithArraySize sets N, the side of the N×N array.
func (b Builder) WithArraySize(n int) Builder {
	b.arraySize = n
	return b
}

// WithTritsPerValue sets the number of trits each weight and input keeps.
func (b Builder) WithTritsPerValue(n int) Builder {
	b.tritsPerValue = n
	return b
}

// WithClockMHz sets the array clock.
func (b Builder) WithClockMHz(f float64) Builder {
	b.clockMHz = f
	return b
}

// Validate checks the builder configuration.
func (b Builder) Validate() error {
	if b.arraySize <= 0 {
		return simerr.New(simerr.KindConfiguration, "matrix.Build",
			"array size must be positive, got %d", b.arraySize)
	}

	if b.tritsPerValue <= 0 || b.tritsPerValue > trit.MaxFloatTrits {
		return simerr.New(simerr.KindConfiguration, "matrix.Build",
			"trits per value must be in [1, %d], got %d",
			trit.MaxFloatTrits, b.tritsPerValue)
	}

	if b.clockMHz <= 0 {
		return simerr.New(simerr.KindConfiguration, "matrix.Build",
			"clock must be positive, got %v MHz", b.clockMHz)
	}

	return nil
}

// Build creates a simulator with no weights loaded.
func (b Builder) Build() (*Simulator, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	return &Simulator{
		size:          b.arraySize,
		tritsPerValue: b.tritsPerValue,
		clockMHz:      b.clockMHz,
	}, nil
}

// New creates an N×N simulator with DefaultTritsPerValue.
func New(arraySize int) (*Simulator, error) {
	return MakeBuilder().WithArraySize(arraySize).Build()
}
