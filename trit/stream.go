package trit

import "github.com/sarchlab/tritsim/simerr"

// TritsPerByte is how many trits PackBytes stores per byte (3^5 = 243).
const TritsPerByte = 5

// PackedSize is the number of bytes PackBytes produces for n trits.
func PackedSize(n int) int {
	return (n + TritsPerByte - 1) / TritsPerByte
}

// PackBytes packs t five trits per byte in order. A short final group is
// padded with zeros.
func PackBytes(t Vector) ([]byte, error) {
	out := make([]byte, PackedSize(len(t)))

	for i := range out {
		group := make(Vector, TritsPerByte)
		copy(group, t[i*TritsPerByte:min((i+1)*TritsPerByte, len(t))])

		code, err := Pack(group)
		if err != nil {
			return nil, err
		}

		out[i] = byte(code)
	}

	return out, nil
}

// UnpackBytes recovers the first n trits from a PackBytes stream.
func UnpackBytes(b []byte, n int) (Vector, error) {
	if n < 0 || n > len(b)*TritsPerByte {
		return nil, simerr.New(simerr.KindShape, "trit.UnpackBytes",
			"%d bytes cannot hold %d trits", len(b), n)
	}

	out := make(Vector, 0, len(b)*TritsPerByte)
	for _, c := range b {
		group, err := Unpack(uint64(c), TritsPerByte)
		if err != nil {
			return nil, err
		}

		out = append(out, group...)
	}

	return out[:n], nil
}
