// Package verify provides debugging tools for checking ISA programs before
// they run on the cycle-level core.
//
// It has two complementary stages:
//
// 1. Static lint (lint.go): structural checks on the assembled program
//   - STRUCT checks: opcodes, operand counts, register names, tier
//     addressing of LDn/STn, branch targets, DMA ranges, a stopping point
//   - DATAFLOW checks: virtual registers read before any write
//
// 2. Functional simulator (funcsim.go): an untimed reference interpreter
//   - Executes the program without pipeline timing, stalls or refresh
//   - Computes on math/big integers wrapped to the word width, so it does
//     not share the trit ALU with the machine
//   - Useful for telling a wrong program from a wrong simulator
//
// # Usage Example
//
//	arch := verify.LoadArchInfoFromConfig(4, 16, 32)
//	prog, _ := core.LoadProgramFile("factorial.tasm")
//
//	for _, issue := range verify.RunLint(prog, arch) {
//	    log.Printf("[%s] pc=%d line=%d: %s", issue.Type, issue.PC, issue.Line, issue.Message)
//	}
//
//	fs := verify.NewFunctionalSimulator(prog, arch)
//	if err := fs.Run(10000); err != nil {
//	    panic(err)
//	}
//
//	acc, _ := fs.Register("ACC")
//	fmt.Println(acc)
//
// # Limitations
//
// - Interrupts: INT, EI and DI are accepted but no handler runs
// - DMA: transfers complete at issue and raise no completion interrupt
// - The outbox never fills
package verify

import (
	"math/big"

	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// IssueType categorizes lint issues
type IssueType string

const (
	IssueStruct   IssueType = "STRUCT"   // The machine would reject the instruction
	IssueDataflow IssueType = "DATAFLOW" // A value is consumed before it is produced
)

// Issue represents a single lint issue
type Issue struct {
	Type    IssueType      // STRUCT or DATAFLOW
	PC      int            // Instruction address (-1 if not applicable)
	Line    int            // Source line (0 if not applicable)
	Opcode  string         // Opcode as written
	Message string         // Human-readable description
	Details map[string]any // Additional structured data
}

// ArchInfo describes the register file the program will run on.
type ArchInfo struct {
	HotRegisters     int
	WorkingRegisters int
	ParkingRegisters int
}

// LoadArchInfoFromConfig creates ArchInfo from the tier sizes of a core
// configuration.
func LoadArchInfoFromConfig(hot, working, parking int) ArchInfo {
	return ArchInfo{
		HotRegisters:     hot,
		WorkingRegisters: working,
		ParkingRegisters: parking,
	}
}

// DefaultArchInfo matches core.MakeBuilder.
func DefaultArchInfo() ArchInfo {
	return LoadArchInfoFromConfig(4, 16, 32)
}

func (a ArchInfo) tierSize(t core.Tier) int {
	switch t {
	case core.TierHot:
		return a.HotRegisters
	case core.TierWorking:
		return a.WorkingRegisters
	case core.TierParking:
		return a.ParkingRegisters
	}

	return 0
}

// lookup resolves an architectural register on this shape.
func (a ArchInfo) lookup(name string) (core.Tier, int, error) {
	return core.LookupRegister(name,
		a.HotRegisters, a.WorkingRegisters, a.ParkingRegisters)
}

var (
	wordModulus = new(big.Int).Exp(big.NewInt(3), big.NewInt(trit.WordTrits), nil)
	wordMax     = new(big.Int).Rsh(wordModulus, 1) // (3^81 - 1) / 2
)

// wrap reduces v into the balanced word range and returns the multiple of
// 3^81 that was removed.
func wrap(v *big.Int) (out *big.Int, carry int64) {
	out = new(big.Int).Set(v)

	k := new(big.Int)
	if out.CmpAbs(wordMax) > 0 {
		shifted := new(big.Int).Add(out, wordMax)
		k.Div(shifted, wordModulus)
		out.Sub(out, new(big.Int).Mul(k, wordModulus))
	}

	return out, k.Int64()
}

// balancedMod returns r with v = q*m + r and |r| <= (m-1)/2, m odd.
func balancedMod(v, m *big.Int) (q, r *big.Int) {
	half := new(big.Int).Rsh(m, 1)

	q = new(big.Int).Add(v, half)
	q.Div(q, m)
	r = new(big.Int).Sub(v, new(big.Int).Mul(q, m))

	return q, r
}

// trits expands v into its balanced-ternary digits, least significant first.
func trits(v *big.Int) []int {
	out := make([]int, trit.WordTrits)
	three := big.NewInt(3)
	cur := new(big.Int).Set(v)

	for i := range out {
		if cur.Sign() == 0 {
			break
		}

		var r *big.Int
		cur, r = balancedMod(cur, three)
		out[i] = int(r.Int64())
	}

	return out
}

// fromTrits is the inverse of trits.
func fromTrits(d []int) *big.Int {
	v := new(big.Int)
	three := big.NewInt(3)

	for i := len(d) - 1; i >= 0; i-- {
		v.Mul(v, three)
		v.Add(v, big.NewInt(int64(d[i])))
	}

	return v
}

func sign(v *big.Int) trit.Trit {
	return trit.Trit(v.Sign())
}

func structErr(op, format string, args ...any) error {
	return simerr.New(simerr.KindDecode, "verify."+op, format, args...)
}
