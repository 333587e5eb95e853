package eval

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rfbench/teststand/internal/rf"
	"github.com/rfbench/teststand/internal/spec"
)

// ErrNoSweepData is returned when both the S11 and S21 traces are empty
// at evaluation time. No run is produced: an empty sweep must not show
// up as a false pass or fail in the lot ledger.
var ErrNoSweepData = errors.New("no sweep data")

// Run is one evaluation of a spec against one physical unit's captured
// sweep. Immutable after creation.
type Run struct {
	Serial       string   `json:"serial"`
	ID           string   `json:"id"` // fresh UUID per run, never reused across retries
	Timestamp    string   `json:"timestamp"`
	Meta         string   `json:"meta"`
	Passed       bool     `json:"passed"`
	PCBLot       string   `json:"pcb_lot"`
	TestChecksum string   `json:"test_checksum,omitempty"`
	Results      []Result `json:"results"`
}

// RunMeta carries the metadata attached to a run at evaluation time.
type RunMeta struct {
	Serial       string
	Meta         string
	PCBLot       string
	TestChecksum string // checksum of the spec active for this run
}

// Aggregate combines ordered per-rule results into one run record.
// The overall verdict is the AND of all rule verdicts; a spec with no
// rules passes vacuously.
func Aggregate(results []Result, meta RunMeta) *Run {
	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}
	return &Run{
		Serial:       meta.Serial,
		ID:           uuid.NewString(),
		Timestamp:    time.Now().Format(time.RFC3339),
		Meta:         meta.Meta,
		Passed:       passed,
		PCBLot:       meta.PCBLot,
		TestChecksum: meta.TestChecksum,
		Results:      results,
	}
}

// NewRun evaluates the spec against the captured traces and aggregates
// the outcome into a run. It refuses to produce a run when the sweep
// yielded no data at all.
func NewRun(s11, s21 []rf.Sample, ts *spec.TestSpec, meta RunMeta) (*Run, error) {
	if len(s11) == 0 && len(s21) == 0 {
		return nil, ErrNoSweepData
	}
	if meta.TestChecksum == "" {
		meta.TestChecksum = ts.Checksum
	}
	return Aggregate(EvaluateSpec(s11, s21, ts), meta), nil
}

// UnitID resolves the ledger identity of the tested unit: the serial
// when present, else the run id. A missing serial therefore always
// registers as a new unique unit; there is no other stable key.
func (r *Run) UnitID() string {
	if r.Serial != "" {
		return r.Serial
	}
	return r.ID
}
