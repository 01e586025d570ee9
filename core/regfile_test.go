package core

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tritsim/simerr"
)

var _ = Describe("Register file", func() {
	var rf regFile

	BeforeEach(func() {
		rf = newRegFile(4, 8, 32)
	})

	It("should resolve architectural names in each tier", func() {
		ref, err := rf.resolve("acc", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(slotRef{TierHot, 0}))

		ref, err = rf.resolve("R7", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(slotRef{TierWorking, 7}))

		ref, err = rf.resolve("P31", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(slotRef{TierParking, 31}))
		Expect(rf.name(ref)).To(Equal("P31"))
	})

	It("should reject names outside the configured tiers", func() {
		for _, name := range []string{"R8", "P32", "Q1", "R", "R-1"} {
			_, err := rf.resolve(name, true)
			Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue(), name)
		}
	})

	It("should hide hot names beyond the tier size", func() {
		small := newRegFile(2, 8, 32)

		_, err := small.resolve("TMP", false)
		Expect(err).NotTo(HaveOccurred())

		_, err = small.resolve("A", false)
		Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
	})

	It("should allocate virtual registers first-fit from the hot tier", func() {
		Expect(rf.write(slotRef{TierHot, 0}, "ACC", word(1))).To(Succeed())

		ref, err := rf.resolve("%x", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(slotRef{TierHot, 1}))

		again, err := rf.resolve("%x", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(ref))
	})

	It("should spill to slower tiers when the hot tier is full", func() {
		for i := 0; i < 4; i++ {
			Expect(rf.write(slotRef{TierHot, i}, hotNames[i], word(1))).To(Succeed())
		}

		ref, err := rf.resolve("%y", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.tier).To(Equal(TierWorking))
	})

	It("should refuse to read an unwritten virtual register", func() {
		_, err := rf.resolve("%nope", false)
		Expect(errors.Is(err, simerr.ErrDecode)).To(BeTrue())
	})

	It("should reuse freed slots", func() {
		ref, _ := rf.resolve("%a", true)
		Expect(rf.free("%a")).To(Succeed())

		other, err := rf.resolve("%b", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(other).To(Equal(ref))

		Expect(errors.Is(rf.free("%a"), simerr.ErrDecode)).To(BeTrue())
	})

	It("should report exhaustion when every tier is full", func() {
		for i := 0; i < 4+8+32; i++ {
			_, err := rf.resolve(vname(i), true)
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := rf.resolve("%overflow", true)
		Expect(errors.Is(err, simerr.ErrResourceExhaustion)).To(BeTrue())
		Expect(rf.inUse(TierParking)).To(Equal(32))
	})

	It("should clear everything on reset", func() {
		Expect(rf.write(slotRef{TierWorking, 3}, "R3", word(9))).To(Succeed())
		_, _ = rf.resolve("%v", true)

		rf.reset()

		Expect(rf.read(slotRef{TierWorking, 3}).IsZero()).To(BeTrue())
		Expect(rf.inUse(TierHot)).To(Equal(0))
		Expect(rf.virtual).To(BeEmpty())
	})

	It("should keep reserved slots out of allocation across resets", func() {
		rf.reserve([]string{"ACC", "A", "R0", "bogus"})
		rf.reset()

		ref, err := rf.resolve("%x", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(slotRef{TierHot, 1}))

		ref, err = rf.resolve("%y", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(slotRef{TierHot, 3}))

		rf.reset()
		Expect(rf.slot(slotRef{TierWorking, 0}).reserved).To(BeTrue())
	})

	It("should refuse architectural writes to a slot held by a virtual register", func() {
		ref, err := rf.resolve("%x", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(rf.write(ref, "%x", word(5))).To(Succeed())

		err = rf.write(ref, rf.name(ref), word(7))
		Expect(errors.Is(err, simerr.ErrState)).To(BeTrue())
		Expect(value(rf.read(ref))).To(Equal(int64(5)))

		Expect(errors.Is(rf.free(rf.name(ref)), simerr.ErrState)).To(BeTrue())

		Expect(rf.free("%x")).To(Succeed())
		Expect(rf.write(ref, rf.name(ref), word(7))).To(Succeed())
	})

	It("should list the registers a program names", func() {
		p := MustParseProgram("names", `
        LDI r2, 1
        DMA P0, R2, 3
        ADD
        JMP end
        MOV %x, IDATA
end:    HALT
`)

		Expect(ReservedRegisters(p, 4, 16, 32)).To(Equal([]string{
			"R2", "P0", "P1", "P2", "R3", "R4", "A", "B", "ACC",
		}))
	})
})

func vname(i int) string {
	return fmt.Sprintf("%%v%d", i)
}
