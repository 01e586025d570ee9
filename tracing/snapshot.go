// Package tracing exports and stores execution traces of the ISA core.
package tracing

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/simerr"
)

// A Snapshot is everything recorded about one run.
type Snapshot struct {
	RunID     string             `cbor:"1,keyasint"`
	Program   string             `cbor:"2,keyasint"`
	Source    string             `cbor:"3,keyasint,omitempty"`
	CreatedAt time.Time          `cbor:"4,keyasint"`
	Result    core.Result        `cbor:"5,keyasint"`
	Stats     core.Stats         `cbor:"6,keyasint"`
	Records   []core.TraceRecord `cbor:"7,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("tracing: failed to create CBOR enc mode: %v", err))
	}

	encMode = em
}

// NewSnapshot captures the machine after a run under a fresh run ID.
func NewSnapshot(m *core.Machine, res core.Result) Snapshot {
	p := m.Program()

	return Snapshot{
		RunID:     uuid.NewString(),
		Program:   p.Name,
		Source:    p.String(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Result:    res,
		Stats:     m.Stats(),
		Records:   m.Trace(),
	}
}

// Marshal encodes s as canonical CBOR.
func (s Snapshot) Marshal() ([]byte, error) {
	return encMode.Marshal(s)
}

// UnmarshalSnapshot decodes a Marshal result.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, simerr.Wrap(simerr.KindDecode, "tracing.UnmarshalSnapshot", err)
	}

	return s, nil
}

// WriteSnapshot writes s to w as canonical CBOR.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	return encMode.NewEncoder(w).Encode(s)
}

// ReadSnapshot reads one snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := cbor.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, simerr.Wrap(simerr.KindDecode, "tracing.ReadSnapshot", err)
	}

	return s, nil
}
