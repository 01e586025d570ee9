package matrix

// Stats summarizes a simulator.
type Stats struct {
	ArraySize      int
	TritsPerValue  int
	ClockMHz       float64
	WeightsLoaded  bool
	MACsPerCycle   int
	ThroughputGOPS float64
	Loads          uint64
	Computes       uint64
}

// Stats reports the configuration, the peak throughput at the array clock
// (two operations per multiply-accumulate), and usage counters.
func (s *Simulator) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	macs := s.size * s.size

	return Stats{
		ArraySize:      s.size,
		TritsPerValue:  s.tritsPerValue,
		ClockMHz:       s.clockMHz,
		WeightsLoaded:  s.weights != nil,
		MACsPerCycle:   macs,
		ThroughputGOPS: float64(macs) * 2 * s.clockMHz / 1000,
		Loads:          s.loads.Load(),
		Computes:       s.computes.Load(),
	}
}
