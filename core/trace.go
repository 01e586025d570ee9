package core

// Stage is the sequencer stage a trace record was produced in.
type Stage string

// The sequencer stages.
const (
	StageReset   Stage = "reset"
	StageFetch   Stage = "fetch"
	StageDecode  Stage = "decode"
	StageExecute Stage = "execute"
	StageMemory  Stage = "memory"
	StageRetire  Stage = "retire"
)

// A TraceRecord describes one cycle.
type TraceRecord struct {
	Cycle  uint64 `cbor:"1,keyasint"`
	PC     int    `cbor:"2,keyasint"`
	Opcode string `cbor:"3,keyasint"`
	Stage  Stage  `cbor:"4,keyasint"`
	Tier   Tier   `cbor:"5,keyasint"`
	Stall  bool   `cbor:"6,keyasint"`
	Note   string `cbor:"7,keyasint,omitempty"`
}

// traceLog keeps the most recent records. A capacity of zero keeps all.
type traceLog struct {
	capacity int
	records  []TraceRecord
}

func (l *traceLog) append(r TraceRecord) {
	l.records = append(l.records, r)

	if l.capacity > 0 && len(l.records) >= 2*l.capacity {
		l.records = append(l.records[:0], l.records[len(l.records)-l.capacity:]...)
	}
}

func (l *traceLog) snapshot() []TraceRecord {
	recs := l.records
	if l.capacity > 0 && len(recs) > l.capacity {
		recs = recs[len(recs)-l.capacity:]
	}

	return append([]TraceRecord(nil), recs...)
}

func (l *traceLog) reset() {
	l.records = l.records[:0]
}
