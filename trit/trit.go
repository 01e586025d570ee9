// Package trit implements balanced-ternary digits and the codec between
// floating-point values, trit vectors, and packed integer codes.
package trit

import (
	"strings"

	"github.com/sarchlab/tritsim/simerr"
)

// A Trit is a balanced-ternary digit, one of -1, 0, +1.
type Trit int8

// The three trit values.
const (
	Neg  Trit = -1
	Zero Trit = 0
	Pos  Trit = 1
)

// Valid reports whether t is one of the three trit values.
func (t Trit) Valid() bool {
	return t >= Neg && t <= Pos
}

// String renders -1 as T, 0 as 0 and +1 as 1.
func (t Trit) String() string {
	switch t {
	case Neg:
		return "T"
	case Zero:
		return "0"
	case Pos:
		return "1"
	default:
		return "?"
	}
}

// ParseTrit accepts T/t/- for -1, 0 and 1.
func ParseTrit(r rune) (Trit, error) {
	switch r {
	case 'T', 't', '-':
		return Neg, nil
	case '0':
		return Zero, nil
	case '1', '+':
		return Pos, nil
	}

	return Zero, simerr.New(simerr.KindDecode, "trit.ParseTrit",
		"invalid trit character %q", r)
}

// A Vector is an ordered trit sequence, most significant trit first.
type Vector []Trit

// Valid reports whether every element is a valid trit.
func (v Vector) Valid() bool {
	for _, t := range v {
		if !t.Valid() {
			return false
		}
	}

	return true
}

func (v Vector) String() string {
	var sb strings.Builder
	for _, t := range v {
		sb.WriteString(t.String())
	}

	return sb.String()
}

// Equal reports whether both vectors hold the same trits.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}

	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}

	return true
}

// ParseVector parses a string such as "1T01", most significant trit first.
func ParseVector(s string) (Vector, error) {
	out := make(Vector, 0, len(s))
	for _, r := range s {
		t, err := ParseTrit(r)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, nil
}
