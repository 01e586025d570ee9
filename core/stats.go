package core

// Stats counts what the machine has done since the last reset.
type Stats struct {
	Cycles        uint64 `cbor:"1,keyasint"`
	Retired       uint64 `cbor:"2,keyasint"`
	StallCycles   uint64 `cbor:"3,keyasint"`
	RefreshCycles uint64 `cbor:"4,keyasint"`

	Jumps          uint64 `cbor:"5,keyasint"`
	Calls          uint64 `cbor:"6,keyasint"`
	Branches       uint64 `cbor:"7,keyasint"`
	BranchesTaken  uint64 `cbor:"8,keyasint"`
	Mispredictions uint64 `cbor:"9,keyasint"`
	Flushes        uint64 `cbor:"10,keyasint"`

	InterruptsRaised   uint64 `cbor:"11,keyasint"`
	InterruptsTaken    uint64 `cbor:"12,keyasint"`
	InterruptsDropped  uint64 `cbor:"13,keyasint"`
	InterruptOverflows uint64 `cbor:"14,keyasint"`

	DMAIssued    uint64 `cbor:"15,keyasint"`
	DMACompleted uint64 `cbor:"16,keyasint"`
	OutputWords  uint64 `cbor:"17,keyasint"`

	// TierAccesses is indexed hot, working, parking.
	TierAccesses [3]uint64 `cbor:"18,keyasint"`
}

// CPI is cycles per retired instruction.
func (s Stats) CPI() float64 {
	if s.Retired == 0 {
		return 0
	}

	return float64(s.Cycles) / float64(s.Retired)
}

// PredictorAccuracy is the fraction of conditional branches predicted
// correctly, or 1 when no branch has executed.
func (s Stats) PredictorAccuracy() float64 {
	if s.Branches == 0 {
		return 1
	}

	return 1 - float64(s.Mispredictions)/float64(s.Branches)
}
