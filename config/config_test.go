package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/simerr"
)

var _ = Describe("Config", func() {
	It("should have a valid default", func() {
		Expect(DefaultConfig().Validate()).To(Succeed())
		Expect(DefaultConfig().Freq()).To(Equal(617 * sim.MHz))
	})

	It("should override only the keys present", func() {
		c, err := Parse([]byte(`
[core]
working-registers = 8
tier-latencies = [1, 2, 3]

[matrix]
array-size = 4
`))
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Core.WorkingRegisters).To(Equal(8))
		Expect(c.Core.TierLatencies).To(Equal([]int{1, 2, 3}))
		Expect(c.Core.ParkingRegisters).To(Equal(32))
		Expect(c.Matrix.ArraySize).To(Equal(4))
		Expect(c.Bridge.ConversionLatency).To(Equal(2))
	})

	It("should round-trip through TOML", func() {
		c := DefaultConfig()
		c.Core.HotRegisters = 3
		c.Bridge.EgressDepth = 7
		c.Sim.MaxCycles = 5000

		var buf bytes.Buffer
		Expect(c.Write(&buf)).To(Succeed())

		back, err := Parse(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(c))
	})

	DescribeTable("rejects bad values",
		func(src string) {
			_, err := Parse([]byte(src))
			Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())
		},
		Entry("too few working registers", "[core]\nworking-registers = 4"),
		Entry("too few parking registers", "[core]\nparking-registers = 16"),
		Entry("short latency list", "[core]\ntier-latencies = [1, 2]"),
		Entry("zero clock", "[sim]\nclock-mhz = 0.0"),
		Entry("zero array", "[matrix]\narray-size = 0"),
		Entry("zero conversion latency", "[bridge]\nconversion-latency = 0"),
		Entry("unknown key", "[core]\nwarp-drive = 1"),
		Entry("bad syntax", "[core\n"),
	)

	It("should load a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "platform.toml")
		Expect(os.WriteFile(path, []byte("[matrix]\narray-size = 3\n"), 0o644)).
			To(Succeed())

		c, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Matrix.ArraySize).To(Equal(3))

		_, err = Load(filepath.Join(GinkgoT().TempDir(), "missing.toml"))
		Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())
	})
})

var _ = Describe("Platform", func() {
	It("should build every component from the config", func() {
		c := DefaultConfig()
		c.Matrix.ArraySize = 3

		p, err := PlatformBuilder{}.WithConfig(c).Build("Platform")
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Matrix.ArraySize()).To(Equal(3))
		Expect(p.Core.Name()).To(Equal("Platform.Core"))
		Expect(p.Driver.Name()).To(Equal("Platform.Driver"))
	})

	It("should refuse an invalid config", func() {
		c := DefaultConfig()
		c.Core.HotRegisters = 9

		_, err := PlatformBuilder{}.WithConfig(c).Build("Platform")
		Expect(errors.Is(err, simerr.ErrConfiguration)).To(BeTrue())
	})

	It("should run a program end to end", func() {
		c := DefaultConfig()
		c.Core.RefreshInterval = 0

		p, err := PlatformBuilder{}.
			WithEngine(sim.NewSerialEngine()).
			WithConfig(c).
			Build("Platform")
		Expect(err).NotTo(HaveOccurred())

		out, err := p.RunProgram(core.MustParseProgram("negate", `
.vector 1 handler
        LDI R0, 2
wait:   TST R0
        BRP wait
        HALT
handler:
        MOV ACC, IDATA
        NEG ACC
        OUT ACC
        SUB R0, 1
        IRET
`), []int64{5, -8}, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]int64{-5, 8}))
	})
})
