package eval

import (
	"errors"
	"testing"

	"github.com/rfbench/teststand/internal/rf"
	"github.com/rfbench/teststand/internal/spec"
)

func TestAggregateVerdictIsANDOverResults(t *testing.T) {
	pass := Result{Passed: true}
	fail := Result{Passed: false}

	run := Aggregate([]Result{pass, pass}, RunMeta{Serial: "SN1"})
	if !run.Passed {
		t.Error("all-pass results should yield a passing run")
	}

	run = Aggregate([]Result{pass, fail, pass}, RunMeta{Serial: "SN1"})
	if run.Passed {
		t.Error("one failing result should fail the run")
	}
}

func TestAggregateEmptyResultsPassVacuously(t *testing.T) {
	run := Aggregate(nil, RunMeta{Serial: "SN1"})
	if !run.Passed {
		t.Error("no rules means vacuous pass")
	}
}

func TestAggregateAssignsFreshIDs(t *testing.T) {
	a := Aggregate(nil, RunMeta{Serial: "SN1"})
	b := Aggregate(nil, RunMeta{Serial: "SN1"})
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("run ids must be unique per run: %q vs %q", a.ID, b.ID)
	}
	if a.Timestamp == "" {
		t.Error("timestamp must be set")
	}
}

func TestNewRunRefusesEmptySweep(t *testing.T) {
	ts := &spec.TestSpec{Tests: []spec.TestPoint{{Frequency: 100, Span: 10}}}
	_, err := NewRun(nil, nil, ts, RunMeta{Serial: "SN1"})
	if !errors.Is(err, ErrNoSweepData) {
		t.Fatalf("expected ErrNoSweepData, got %v", err)
	}
}

func TestNewRunCarriesSpecChecksum(t *testing.T) {
	ts := &spec.TestSpec{
		Tests:    []spec.TestPoint{{Parameter: rf.ParamS21, Frequency: 100, Span: 10, LimitDB: -3, Direction: spec.DirectionUnder}},
		Checksum: "abc123",
	}
	s21 := []rf.Sample{{Frequency: 100, Gain: -6.0}}
	run, err := NewRun(nil, s21, ts, RunMeta{Serial: "SN1", PCBLot: "L1"})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if run.TestChecksum != "abc123" {
		t.Errorf("TestChecksum = %q, want abc123", run.TestChecksum)
	}
	if !run.Passed {
		t.Errorf("expected passing run, got %+v", run)
	}
}

func TestUnitIDPrefersSerial(t *testing.T) {
	run := &Run{Serial: "SNX", ID: "uuid-1"}
	if run.UnitID() != "SNX" {
		t.Errorf("UnitID = %q, want SNX", run.UnitID())
	}
	run = &Run{Serial: "", ID: "uuid-1"}
	if run.UnitID() != "uuid-1" {
		t.Errorf("UnitID = %q, want uuid-1", run.UnitID())
	}
}
