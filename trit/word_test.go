package trit

import (
	"math"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Word", func() {
	DescribeTable("int64 conversion",
		func(v int64, s string) {
			w := WordFromInt64(v)
			Expect(w.String()).To(Equal(s))

			back, ok := w.Int64()
			Expect(ok).To(BeTrue())
			Expect(back).To(Equal(v))
		},
		Entry("zero", int64(0), "0"),
		Entry("one", int64(1), "1"),
		Entry("minus one", int64(-1), "T"),
		Entry("two", int64(2), "1T"),
		Entry("eight", int64(8), "10T"),
		Entry("minus seven", int64(-7), "T1T"),
		Entry("120", int64(120), "11110"),
	)

	It("should convert the int64 extremes", func() {
		for _, v := range []int64{math.MaxInt64, math.MinInt64} {
			back, ok := WordFromInt64(v).Int64()
			Expect(ok).To(BeTrue())
			Expect(back).To(Equal(v))
		}
	})

	It("should negate trit-wise", func() {
		w := WordFromInt64(42)
		n, _ := w.Neg().Int64()
		Expect(n).To(Equal(int64(-42)))
		Expect(w.Neg().Sign()).To(Equal(Neg))
		Expect(w.Sign()).To(Equal(Pos))
		Expect(Word{}.IsZero()).To(BeTrue())
	})

	It("should index trits least significant first", func() {
		w := WordFromInt64(5) // 1TT

		Expect(w.Trit(0)).To(Equal(Neg))
		Expect(w.Trit(1)).To(Equal(Neg))
		Expect(w.Trit(2)).To(Equal(Pos))
		Expect(w.Trit(3)).To(Equal(Zero))
		Expect(w.Trit(WordTrits)).To(Equal(Zero))
		Expect(w.Trit(-1)).To(Equal(Zero))
	})

	It("should report values too large for int64", func() {
		var w Word
		w[WordTrits-1] = Pos

		_, ok := w.Int64()
		Expect(ok).To(BeFalse())

		back, fits := WordFromBig(w.Big())
		Expect(fits).To(BeTrue())
		Expect(back).To(Equal(w))
	})

	It("should flag big values beyond 81 trits", func() {
		huge := new(big.Int).Exp(big.NewInt(3), big.NewInt(90), nil)
		_, ok := WordFromBig(huge)
		Expect(ok).To(BeFalse())
	})

	It("should parse trit literals", func() {
		w, err := ParseWord("0t1T0")
		Expect(err).NotTo(HaveOccurred())

		v, _ := w.Int64()
		Expect(v).To(Equal(int64(6)))

		_, err = ParseWord("12")
		Expect(err).To(HaveOccurred())
	})

	It("should expose the trits most significant first", func() {
		w := WordFromInt64(5)
		v := w.Vector()
		Expect(v).To(HaveLen(WordTrits))
		Expect(v[WordTrits-3:]).To(Equal(Vector{1, -1, -1}))

		back, err := WordFromVector(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(w))
	})
})
