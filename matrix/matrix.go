// Package matrix simulates a weight-stationary N×N ternary matrix-vector
// array. Weights and inputs are quantized through the trit codec and the
// products are accumulated in decoded arithmetic.
package matrix

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// A Simulator holds one quantized weight matrix. Compute may be called
// concurrently; LoadWeights excludes all other calls while it swaps the
// matrix in.
type Simulator struct {
	size          int
	tritsPerValue int
	clockMHz      float64

	mu      sync.RWMutex
	weights [][]float64

	loads    atomic.Uint64
	computes atomic.Uint64
}

// ArraySize returns N.
func (s *Simulator) ArraySize() int {
	return s.size
}

// TritsPerValue returns the quantization width.
func (s *Simulator) TritsPerValue() int {
	return s.tritsPerValue
}

func (s *Simulator) quantize(v float64) float64 {
	return trit.Decode(trit.Encode(v, s.tritsPerValue))
}

// LoadWeights quantizes w and replaces the stored matrix. w must be N×N.
// On error the previous matrix stays in place.
func (s *Simulator) LoadWeights(w [][]float64) error {
	if len(w) != s.size {
		return simerr.New(simerr.KindShape, "matrix.LoadWeights",
			"expected %d rows, got %d", s.size, len(w))
	}

	q := make([][]float64, s.size)
	for i, row := range w {
		if len(row) != s.size {
			return simerr.New(simerr.KindShape, "matrix.LoadWeights",
				"row %d has %d columns, expected %d", i, len(row), s.size)
		}

		q[i] = make([]float64, s.size)
		for j, v := range row {
			q[i][j] = s.quantize(v)
		}
	}

	s.mu.Lock()
	s.weights = q
	s.mu.Unlock()
	s.loads.Add(1)

	return nil
}

// Compute returns W·v with v quantized first.
func (s *Simulator) Compute(v []float64) ([]float64, error) {
	s.mu.RLock()
	w := s.weights
	s.mu.RUnlock()

	out, err := s.compute(w, v)
	if err != nil {
		return nil, err
	}

	s.computes.Add(1)

	return out, nil
}

// ComputeBatch runs Compute over each vector against the same weights.
func (s *Simulator) ComputeBatch(vs [][]float64) ([][]float64, error) {
	s.mu.RLock()
	w := s.weights
	s.mu.RUnlock()

	out := make([][]float64, len(vs))
	for i, v := range vs {
		r, err := s.compute(w, v)
		if err != nil {
			return nil, err
		}

		out[i] = r
	}

	s.computes.Add(uint64(len(vs)))

	return out, nil
}

func (s *Simulator) compute(w [][]float64, v []float64) ([]float64, error) {
	if w == nil {
		return nil, simerr.New(simerr.KindState, "matrix.Compute",
			"no weights loaded")
	}

	if len(v) != s.size {
		return nil, simerr.New(simerr.KindShape, "matrix.Compute",
			"expected %d inputs, got %d", s.size, len(v))
	}

	in := make([]float64, s.size)
	for j, x := range v {
		in[j] = s.quantize(x)
	}

	out := make([]float64, s.size)
	for i, row := range w {
		sum := 0.0
		for j, wij := range row {
			sum += wij * in[j]
		}

		out[i] = sum
	}

	return out, nil
}

// QuantizedWeights returns a copy of the stored matrix, or nil before the
// first load.
func (s *Simulator) QuantizedWeights() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.weights == nil {
		return nil
	}

	out := make([][]float64, len(s.weights))
	for i, row := range s.weights {
		out[i] = append([]float64(nil), row...)
	}

	return out
}

// PackedWeights serializes the stored matrix row-major, tritsPerValue trits
// per entry, five trits per byte.
func (s *Simulator) PackedWeights() ([]byte, error) {
	w := s.QuantizedWeights()
	if w == nil {
		return nil, simerr.New(simerr.KindState, "matrix.PackedWeights",
			"no weights loaded")
	}

	flat := make([]float64, 0, s.size*s.size)
	for _, row := range w {
		flat = append(flat, row...)
	}

	return trit.PackBytes(trit.EncodeSlice(flat, s.tritsPerValue))
}

// LoadPackedWeights is the inverse of PackedWeights.
func (s *Simulator) LoadPackedWeights(b []byte) error {
	t, err := trit.UnpackBytes(b, s.size*s.size*s.tritsPerValue)
	if err != nil {
		return err
	}

	flat, err := trit.DecodeSlice(t, s.tritsPerValue)
	if err != nil {
		return err
	}

	w := make([][]float64, s.size)
	for i := range w {
		w[i] = flat[i*s.size : (i+1)*s.size]
	}

	return s.LoadWeights(w)
}
