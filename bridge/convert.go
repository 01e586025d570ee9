package bridge

import (
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// WordBytes is the size of a packed 81-trit word.
var WordBytes = trit.PackedSize(trit.WordTrits)

// ToTernary converts a signed host word. Every int64 fits in a ternary
// word.
func ToTernary(v int64) trit.Word {
	return trit.WordFromInt64(v)
}

// ToBinary converts a ternary word back to a host word. Values outside the
// int64 range are an arithmetic error.
func ToBinary(w trit.Word) (int64, error) {
	v, ok := w.Int64()
	if !ok {
		return 0, simerr.New(simerr.KindArithmetic, "bridge.ToBinary",
			"%s does not fit in 64 bits", w.Big())
	}

	return v, nil
}

// PackWord serializes w most significant trit first, five trits per byte.
func PackWord(w trit.Word) ([]byte, error) {
	return trit.PackBytes(w.Vector())
}

// UnpackWord is the inverse of PackWord.
func UnpackWord(b []byte) (trit.Word, error) {
	if len(b) != WordBytes {
		return trit.Word{}, simerr.New(simerr.KindShape, "bridge.UnpackWord",
			"packed word is %d bytes, got %d", WordBytes, len(b))
	}

	v, err := trit.UnpackBytes(b, trit.WordTrits)
	if err != nil {
		return trit.Word{}, err
	}

	return trit.WordFromVector(v)
}
