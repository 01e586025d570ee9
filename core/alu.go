package core

import (
	"math/big"

	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// AddTrit is the single-trit addition law: a + b = sum + 3·carry.
func AddTrit(a, b trit.Trit) (sum, carry trit.Trit) {
	return AddTrits(a, b, trit.Zero)
}

// AddTrits adds three trits, the third being the incoming carry.
func AddTrits(a, b, c trit.Trit) (sum, carry trit.Trit) {
	s := int(a) + int(b) + int(c)

	switch {
	case s >= 2:
		carry = trit.Pos
	case s <= -2:
		carry = trit.Neg
	}

	return trit.Trit(s - 3*int(carry)), carry
}

// Add ripples AddTrits from the least significant trit up. The carry out of
// the top trit is returned and dropped from the sum.
func Add(a, b trit.Word) (trit.Word, trit.Trit) {
	var (
		out   trit.Word
		carry trit.Trit
	)

	for i := 0; i < trit.WordTrits; i++ {
		out[i], carry = AddTrits(a[i], b[i], carry)
	}

	return out, carry
}

// Sub is Add with the subtrahend negated.
func Sub(a, b trit.Word) (trit.Word, trit.Trit) {
	return Add(a, b.Neg())
}

// Shift multiplies by 3^n for positive n and divides by 3^|n| for negative n.
// Trits shifted past either end are lost; lost is true if any was nonzero.
func Shift(w trit.Word, n int) (out trit.Word, lost bool) {
	for i, t := range w {
		j := i + n
		if j < 0 || j >= trit.WordTrits {
			lost = lost || t != trit.Zero
			continue
		}

		out[j] = t
	}

	return out, lost
}

// Mul multiplies by shift-and-add over the nonzero trits of b. The result
// wraps modulo 3^81; overflow reports whether the true product did not fit.
func Mul(a, b trit.Word) (out trit.Word, overflow bool) {
	for i, t := range b {
		if t == trit.Zero {
			continue
		}

		partial, _ := Shift(a, i)
		if t == trit.Neg {
			partial = partial.Neg()
		}

		out, _ = Add(out, partial)
	}

	_, fits := trit.WordFromBig(new(big.Int).Mul(a.Big(), b.Big()))

	return out, !fits
}

// DivMod returns the quotient truncated toward zero and the remainder.
func DivMod(a, b trit.Word) (q, r trit.Word, err error) {
	if b.IsZero() {
		return q, r, simerr.New(simerr.KindArithmetic, "core.DivMod",
			"division by zero")
	}

	bq, br := new(big.Int).QuoRem(a.Big(), b.Big(), new(big.Int))
	q, _ = trit.WordFromBig(bq)
	r, _ = trit.WordFromBig(br)

	return q, r, nil
}

// TritAnd is the trit-wise minimum.
func TritAnd(a, b trit.Word) trit.Word {
	for i := range a {
		a[i] = min(a[i], b[i])
	}

	return a
}

// TritOr is the trit-wise maximum.
func TritOr(a, b trit.Word) trit.Word {
	for i := range a {
		a[i] = max(a[i], b[i])
	}

	return a
}

// TritNot negates every trit.
func TritNot(a trit.Word) trit.Word {
	return a.Neg()
}

// TritXor is the trit-wise sum without carry.
func TritXor(a, b trit.Word) trit.Word {
	for i := range a {
		a[i], _ = AddTrit(a[i], b[i])
	}

	return a
}
