// Package valgen provides closures that generate test and sample values.
package valgen

import "math/rand/v2"

// MakeConstGen always returns constant.
func MakeConstGen(constant float64) func() float64 {
	return func() float64 {
		return constant
	}
}

// MakeIncreasingGen returns start+step, start+2·step, ...
func MakeIncreasingGen(start, step float64) func() float64 {
	current := start
	return func() float64 {
		current += step
		return current
	}
}

// MakeUniformGen returns reproducible values drawn uniformly from [lo, hi).
func MakeUniformGen(seed uint64, lo, hi float64) func() float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func() float64 {
		return lo + r.Float64()*(hi-lo)
	}
}

// MakeIntGen returns reproducible integers in [lo, hi].
func MakeIntGen(seed uint64, lo, hi int64) func() int64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	return func() int64 {
		return lo + r.Int64N(hi-lo+1)
	}
}

// Vector fills a slice of length n from gen.
func Vector(n int, gen func() float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = gen()
	}

	return out
}

// Matrix fills an rows×cols matrix from gen, row by row.
func Matrix(rows, cols int, gen func() float64) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = Vector(cols, gen)
	}

	return out
}

// Identity returns the n×n identity matrix scaled by s.
func Identity(n int, s float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		out[i][i] = s
	}

	return out
}
