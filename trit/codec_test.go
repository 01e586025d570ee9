package trit

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tritsim/simerr"
)

var _ = Describe("Codec", func() {
	It("should encode 0.5 with five trits close to 0.5", func() {
		t := Encode(0.5, 5)

		Expect(t).To(HaveLen(5))
		Expect(Decode(t)).To(BeNumerically(">=", 0.48))
		Expect(Decode(t)).To(BeNumerically("<=", 0.52))
	})

	It("should represent the full scale exactly", func() {
		for n := 1; n <= 12; n++ {
			Expect(Decode(Encode(1, n))).To(BeNumerically("~", 1, 1e-12))
			Expect(Decode(Encode(-1, n))).To(BeNumerically("~", -1, 1e-12))
			Expect(Decode(Encode(0, n))).To(BeZero())
		}
	})

	It("should clamp out-of-range values", func() {
		Expect(Encode(7.5, 3)).To(Equal(Encode(1, 3)))
		Expect(Encode(-3, 3)).To(Equal(Encode(-1, 3)))
		Expect(Encode(math.NaN(), 3)).To(Equal(Vector{0, 0, 0}))
	})

	It("should panic on a non-positive trit count", func() {
		Expect(func() { Encode(0.1, 0) }).To(Panic())
	})

	DescribeTable("round trip error stays within 2/3^n",
		func(n int) {
			bound := MaxError(n)
			for i := -1000; i <= 1000; i++ {
				v := float64(i) / 1000
				got := Decode(Encode(v, n))
				Expect(math.Abs(got-v)).To(BeNumerically("<=", bound),
					"v=%v n=%d", v, n)
			}
		},
		Entry("1 trit", 1),
		Entry("2 trits", 2),
		Entry("3 trits", 3),
		Entry("5 trits", 5),
		Entry("8 trits", 8),
		Entry("12 trits", 12),
		Entry("20 trits", 20),
		Entry("the float64 ceiling", MaxFloatTrits),
	)

	It("should produce only valid trits", func() {
		for i := -50; i <= 50; i++ {
			Expect(Encode(float64(i)/37, 7).Valid()).To(BeTrue())
		}
	})

	It("should decode an empty vector as zero", func() {
		Expect(Decode(nil)).To(BeZero())
	})

	It("should decode with the most significant trit first", func() {
		Expect(Decode(Vector{1, 0})).To(BeNumerically("~", 3.0/4, 1e-12))
		Expect(Decode(Vector{0, 1})).To(BeNumerically("~", 1.0/4, 1e-12))
	})

	Context("packing", func() {
		It("should be a bijection over every 5-trit code", func() {
			seen := make(map[string]bool)
			for code := uint64(0); code < 243; code++ {
				t, err := Unpack(code, 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(t.Valid()).To(BeTrue())

				back, err := Pack(t)
				Expect(err).NotTo(HaveOccurred())
				Expect(back).To(Equal(code))

				seen[t.String()] = true
			}

			Expect(seen).To(HaveLen(243))
		})

		It("should weight the first trit lowest", func() {
			code, err := Pack(Vector{1, -1})
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(uint64(2)))
		})

		It("should reject out-of-range codes", func() {
			_, err := Unpack(243, 5)
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})

		It("should reject invalid digits", func() {
			_, err := Pack(Vector{0, 2})
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
		})

		It("should reject vectors wider than a uint64", func() {
			_, err := Pack(make(Vector, MaxPackTrits+1))
			Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())

			_, err = Unpack(0, MaxPackTrits+1)
			Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())
		})

		It("should handle the widest vector", func() {
			t := make(Vector, MaxPackTrits)
			for i := range t {
				t[i] = Pos
			}

			code, err := Pack(t)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(Pow3(MaxPackTrits) - 1))

			back, err := Unpack(code, MaxPackTrits)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(t))
		})
	})

	Context("slices", func() {
		It("should encode and decode concatenated values", func() {
			values := []float64{0.25, -0.5, 1}
			t := EncodeSlice(values, 6)
			Expect(t).To(HaveLen(18))

			got, err := DecodeSlice(t, 6)
			Expect(err).NotTo(HaveOccurred())
			for i := range values {
				Expect(got[i]).To(BeNumerically("~", values[i], MaxError(6)))
			}
		})

		It("should reject a ragged stream", func() {
			_, err := DecodeSlice(make(Vector, 7), 3)
			Expect(errors.Is(err, simerr.ErrShape)).To(BeTrue())
		})
	})
})
