package trit

import (
	"math/big"
	"strings"

	"github.com/sarchlab/tritsim/simerr"
)

// WordTrits is the width of a machine word.
const WordTrits = 81

// A Word is an 81-trit balanced-ternary integer. Index 0 holds the least
// significant trit.
type Word [WordTrits]Trit

// WordFromInt64 converts v exactly. Every int64 fits in 41 trits.
func WordFromInt64(v int64) Word {
	var w Word

	for i := 0; v != 0; i++ {
		q, r := v/3, v%3
		switch r {
		case 0:
			v = q
		case 1:
			w[i], v = Pos, q
		case -1:
			w[i], v = Neg, q
		case 2:
			w[i], v = Neg, q+1
		case -2:
			w[i], v = Pos, q-1
		}
	}

	return w
}

var (
	bigThree = big.NewInt(3)
	bigOne   = big.NewInt(1)
)

// WordFromBig converts b, keeping the low 81 trits. ok is false when b does
// not fit.
func WordFromBig(b *big.Int) (w Word, ok bool) {
	v := new(big.Int).Set(b)
	r := new(big.Int)

	for i := 0; i < WordTrits && v.Sign() != 0; i++ {
		v.QuoRem(v, bigThree, r)
		switch r.Int64() {
		case 1:
			w[i] = Pos
		case -1:
			w[i] = Neg
		case 2:
			w[i] = Neg
			v.Add(v, bigOne)
		case -2:
			w[i] = Pos
			v.Sub(v, bigOne)
		}
	}

	return w, v.Sign() == 0
}

// Big returns the integer value of w.
func (w Word) Big() *big.Int {
	v := new(big.Int)
	for i := WordTrits - 1; i >= 0; i-- {
		v.Mul(v, bigThree)
		v.Add(v, big.NewInt(int64(w[i])))
	}

	return v
}

// Int64 returns the value of w and whether it fits in an int64.
func (w Word) Int64() (int64, bool) {
	b := w.Big()
	if !b.IsInt64() {
		return 0, false
	}

	return b.Int64(), true
}

// Neg returns -w.
func (w Word) Neg() Word {
	for i := range w {
		w[i] = -w[i]
	}

	return w
}

// Sign is the most significant nonzero trit, which is the sign of the value.
func (w Word) Sign() Trit {
	for i := WordTrits - 1; i >= 0; i-- {
		if w[i] != Zero {
			return w[i]
		}
	}

	return Zero
}

// IsZero reports whether every trit is zero.
func (w Word) IsZero() bool {
	return w.Sign() == Zero
}

// Trit returns the trit of weight 3^i. Positions outside the word read as
// zero.
func (w Word) Trit(i int) Trit {
	if i < 0 || i >= WordTrits {
		return Zero
	}

	return w[i]
}

// Vector returns the trits most significant first.
func (w Word) Vector() Vector {
	out := make(Vector, WordTrits)
	for i := range w {
		out[WordTrits-1-i] = w[i]
	}

	return out
}

// WordFromVector is the inverse of Vector. Shorter vectors are zero-extended
// at the top.
func WordFromVector(v Vector) (Word, error) {
	var w Word
	if len(v) > WordTrits {
		return w, simerr.New(simerr.KindShape, "trit.WordFromVector",
			"%d trits exceed word width %d", len(v), WordTrits)
	}

	for i, t := range v {
		if !t.Valid() {
			return w, simerr.New(simerr.KindDecode, "trit.WordFromVector",
				"invalid trit %d", t)
		}

		w[len(v)-1-i] = t
	}

	return w, nil
}

// String renders w most significant first without leading zeros.
func (w Word) String() string {
	var sb strings.Builder

	started := false
	for i := WordTrits - 1; i >= 0; i-- {
		if w[i] != Zero {
			started = true
		}

		if started {
			sb.WriteString(w[i].String())
		}
	}

	if !started {
		return "0"
	}

	return sb.String()
}

// ParseWord reads a trit string such as "0t1T0" or "1T0".
func ParseWord(s string) (Word, error) {
	s = strings.TrimPrefix(s, "0t")

	v, err := ParseVector(s)
	if err != nil {
		return Word{}, err
	}

	return WordFromVector(v)
}
