package bridge

import (
	"errors"
	"math"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

var _ = Describe("Conversion", func() {
	DescribeTable("host words round-trip",
		func(v int64) {
			back, err := ToBinary(ToTernary(v))
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(v))
		},
		Entry("zero", int64(0)),
		Entry("one", int64(1)),
		Entry("minus one", int64(-1)),
		Entry("two", int64(2)),
		Entry("max", int64(math.MaxInt64)),
		Entry("min", int64(math.MinInt64)),
	)

	It("should reject words beyond 64 bits", func() {
		huge := new(big.Int).Lsh(big.NewInt(1), 70)
		w, ok := trit.WordFromBig(huge)
		Expect(ok).To(BeTrue())

		_, err := ToBinary(w)
		Expect(errors.Is(err, simerr.ErrArithmetic)).To(BeTrue())
	})

	It("should pack a word into 17 bytes", func() {
		w := ToTernary(-123456789)

		b, err := PackWord(w)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(HaveLen(17))

		back, err := UnpackWord(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(w))
	})

	It("should reject a short packed word", func() {
		_, err := UnpackWord(make([]byte, 16))
		Expect(errors.Is(err, simerr.ErrShape)).To(BeTrue())
	})
})

var _ = Describe("Bridge", func() {
	var b *Bridge

	BeforeEach(func() {
		var err error
		b, err = MakeBuilder().
			WithIngressDepth(2).
			WithEgressDepth(2).
			WithConversionLatency(2).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject a bad configuration", func() {
		_, err := MakeBuilder().WithConversionLatency(0).Build()
		Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())

		_, err = MakeBuilder().WithEgressDepth(0).Build()
		Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())
	})

	It("should deliver a word after the conversion latency", func() {
		Expect(b.Send(42)).To(Succeed())

		b.Step()
		b.Step()
		_, err := b.Deliver()
		Expect(errors.Is(err, simerr.ErrBackpressure)).To(BeTrue())

		b.Step()
		w, err := b.Deliver()
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(trit.WordFromInt64(42)))
	})

	It("should return results to the host", func() {
		Expect(b.Accept(trit.WordFromInt64(-7))).To(Succeed())

		b.Step()
		_, err := b.Receive()
		Expect(err).To(HaveOccurred())

		b.Step()
		v, err := b.Receive()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(int64(-7)))
		Expect(b.Idle()).To(BeTrue())
	})

	It("should push back on the host when ingress is full", func() {
		Expect(b.Send(1)).To(Succeed())
		Expect(b.Send(2)).To(Succeed())

		err := b.Send(3)
		Expect(errors.Is(err, simerr.ErrBackpressure)).To(BeTrue())
		Expect(b.Stats().Ingress.Overflows).To(Equal(uint64(1)))
	})

	It("should hold host words in ingress while the device is slow", func() {
		for i := int64(1); i <= 2; i++ {
			Expect(b.Send(i)).To(Succeed())
		}

		for i := 0; i < 4; i++ {
			b.Step()
		}

		Expect(b.Send(3)).To(Succeed())
		for i := 0; i < 4; i++ {
			b.Step()
		}

		Expect(b.Pending()).To(Equal(2))
		Expect(b.ingress.Len()).To(Equal(1))
		Expect(b.toTernary).To(BeEmpty())
		Expect(b.Stats().Stalls).To(BeNumerically(">", 0))

		for i := int64(1); i <= 3; i++ {
			w, err := b.Deliver()
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(trit.WordFromInt64(i)))

			b.Step()
			b.Step()
		}
	})

	It("should bound the words in flight when nothing is delivered", func() {
		b, err := MakeBuilder().
			WithIngressDepth(2).
			WithEgressDepth(2).
			WithConversionLatency(1).
			Build()
		Expect(err).NotTo(HaveOccurred())

		accepted := 0
		for i := int64(0); i < 100; i++ {
			if err := b.Send(i); err == nil {
				accepted++
			} else {
				Expect(errors.Is(err, simerr.ErrBackpressure)).To(BeTrue())
			}

			b.Step()
		}

		Expect(accepted).To(Equal(4))
		Expect(len(b.toTernary) + b.Pending()).To(BeNumerically("<=", 2))
		Expect(b.ingress.Len()).To(Equal(2))
		Expect(b.Stats().Ingress.Overflows).To(Equal(uint64(96)))

		for i := int64(0); i < 4; i++ {
			for b.Pending() == 0 {
				b.Step()
			}

			w, err := b.Deliver()
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(trit.WordFromInt64(i)))
		}
	})

	It("should push back on the device when the return path is full", func() {
		Expect(b.Accept(trit.WordFromInt64(1))).To(Succeed())
		Expect(b.Accept(trit.WordFromInt64(2))).To(Succeed())

		err := b.Accept(trit.WordFromInt64(3))
		Expect(errors.Is(err, simerr.ErrBackpressure)).To(BeTrue())
		Expect(b.Stats().Egress.Overflows).To(Equal(uint64(1)))
	})

	It("should refuse results that do not fit the host", func() {
		w, _ := trit.WordFromBig(new(big.Int).Lsh(big.NewInt(1), 80))

		err := b.Accept(w)
		Expect(errors.Is(err, simerr.ErrArithmetic)).To(BeTrue())
	})

	It("should reset and render", func() {
		Expect(b.Send(1)).To(Succeed())
		b.Step()

		Expect(RenderStats(b.Stats())).To(ContainSubstring("ingress"))

		b.Reset()
		Expect(b.Idle()).To(BeTrue())
		Expect(b.Stats().Sent).To(BeZero())
	})
})
