package trit

import (
	"math"

	"github.com/sarchlab/tritsim/simerr"
)

// MaxPackTrits is the longest vector whose packed code fits in a uint64.
const MaxPackTrits = 40

var pow3Table = func() [MaxPackTrits + 1]uint64 {
	var t [MaxPackTrits + 1]uint64
	t[0] = 1
	for i := 1; i <= MaxPackTrits; i++ {
		t[i] = t[i-1] * 3
	}

	return t
}()

// Pow3 returns 3^n for 0 <= n <= MaxPackTrits.
func Pow3(n int) uint64 {
	return pow3Table[n]
}

// FullScale is the largest integer magnitude an n-trit vector can hold,
// (3^n - 1) / 2. Decoded values are normalised by it so that +1 and -1 are
// exactly representable.
func FullScale(n int) float64 {
	return (math.Pow(3, float64(n)) - 1) / 2
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}

	return v
}

// Encode quantizes value into n trits, most significant first. The value is
// clamped to [-1, 1]. Each step picks the trit nearest to three times the
// running remainder and carries the residual to the next position. It
// panics if n is not positive.
func Encode(value float64, n int) Vector {
	if n <= 0 {
		panic("trit: Encode needs at least one trit")
	}

	v := clampUnit(value)
	r := v * FullScale(n) / math.Pow(3, float64(n))

	out := make(Vector, n)
	for i := range out {
		x := r * 3
		t := math.Round(x)
		if t > 1 {
			t = 1
		} else if t < -1 {
			t = -1
		}

		out[i] = Trit(t)
		r = x - t
	}

	return out
}

// Decode returns the value of t in [-1, 1]. An empty vector decodes to 0.
func Decode(t Vector) float64 {
	if len(t) == 0 {
		return 0
	}

	sum := 0.0
	for _, d := range t {
		sum = sum*3 + float64(d)
	}

	return sum / FullScale(len(t))
}

// MaxFloatTrits is the longest encoding for which float64 arithmetic still
// meets MaxError. Past it the rounding of Encode and Decode, about 2^-52,
// exceeds 2/3^n.
const MaxFloatTrits = 30

// MaxError is the worst-case |Decode(Encode(v, n)) - v| guaranteed by the
// codec for n <= MaxFloatTrits. Longer encodings are still valid vectors
// but only accurate to float64 precision.
func MaxError(n int) float64 {
	return 2 / math.Pow(3, float64(n))
}

// Pack maps t to the integer Σ (t[i]+1)·3^i, a bijection onto [0, 3^n).
func Pack(t Vector) (uint64, error) {
	if len(t) > MaxPackTrits {
		return 0, simerr.New(simerr.KindConfiguration, "trit.Pack",
			"%d trits exceed the %d-trit limit", len(t), MaxPackTrits)
	}

	var code uint64
	for i, d := range t {
		if !d.Valid() {
			return 0, simerr.New(simerr.KindDecode, "trit.Pack",
				"invalid trit %d at position %d", d, i)
		}

		code += uint64(d+1) * pow3Table[i]
	}

	return code, nil
}

// Unpack is the inverse of Pack.
func Unpack(code uint64, n int) (Vector, error) {
	if n < 0 || n > MaxPackTrits {
		return nil, simerr.New(simerr.KindConfiguration, "trit.Unpack",
			"trit count %d outside [0, %d]", n, MaxPackTrits)
	}

	if code >= pow3Table[n] {
		return nil, simerr.New(simerr.KindDecode, "trit.Unpack",
			"code %d out of range for %d trits", code, n)
	}

	out := make(Vector, n)
	for i := range out {
		out[i] = Trit(code%3) - 1
		code /= 3
	}

	return out, nil
}

// EncodeSlice encodes each value with n trits and concatenates the results.
func EncodeSlice(values []float64, n int) Vector {
	out := make(Vector, 0, len(values)*n)
	for _, v := range values {
		out = append(out, Encode(v, n)...)
	}

	return out
}

// DecodeSlice splits t into n-trit groups and decodes each of them.
func DecodeSlice(t Vector, n int) ([]float64, error) {
	if n <= 0 || len(t)%n != 0 {
		return nil, simerr.New(simerr.KindShape, "trit.DecodeSlice",
			"%d trits do not split into %d-trit values", len(t), n)
	}

	out := make([]float64, len(t)/n)
	for i := range out {
		out[i] = Decode(t[i*n : (i+1)*n])
	}

	return out, nil
}
