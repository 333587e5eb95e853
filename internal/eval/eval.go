// Package eval implements the limit-rule evaluation engine: window
// selection over captured traces, directional pass/fail checks, and
// aggregation of per-rule results into one test run per unit.
package eval

import (
	"fmt"

	"github.com/rfbench/teststand/internal/rf"
	"github.com/rfbench/teststand/internal/spec"
)

// ReasonNoSamples marks a rule whose frequency window contained no
// captured samples. A rule with no coverage cannot be judged passing, so
// this is a hard failure carried as data, not an error.
const ReasonNoSamples = "no_samples"

// Result is the outcome of evaluating a single rule against a trace.
// Min and Max are nil when the window held no samples.
type Result struct {
	TP      spec.TestPoint `json:"tp"`
	Passed  bool           `json:"passed"`
	Reason  string         `json:"reason,omitempty"`
	Min     *float64       `json:"min"`
	Max     *float64       `json:"max"`
	Failing []int64        `json:"failing"`
	Samples int            `json:"samples"`
}

// EvaluateTestPoint checks one rule against a captured trace. The caller
// picks the trace for the rule's parameter; window filtering happens
// here. Both window bounds are inclusive. The function is pure: equal
// inputs always produce equal results.
func EvaluateTestPoint(trace []rf.Sample, tp spec.TestPoint) Result {
	low, high := tp.Window()

	var window []rf.Sample
	for _, s := range trace {
		if s.Frequency >= low && s.Frequency <= high {
			window = append(window, s)
		}
	}

	if len(window) == 0 {
		return Result{
			TP:      tp,
			Passed:  false,
			Reason:  ReasonNoSamples,
			Failing: []int64{},
			Samples: 0,
		}
	}

	minG, maxG := window[0].Gain, window[0].Gain
	failing := []int64{}
	for _, s := range window {
		if s.Gain < minG {
			minG = s.Gain
		}
		if s.Gain > maxG {
			maxG = s.Gain
		}
		switch tp.Direction {
		case spec.DirectionOver:
			if s.Gain < tp.LimitDB {
				failing = append(failing, s.Frequency)
			}
		case spec.DirectionUnder:
			if s.Gain > tp.LimitDB {
				failing = append(failing, s.Frequency)
			}
		}
	}

	return Result{
		TP:      tp,
		Passed:  len(failing) == 0,
		Min:     &minG,
		Max:     &maxG,
		Failing: failing,
		Samples: len(window),
	}
}

// EvaluateSpec evaluates every rule of the spec in order, one result per
// rule, so callers can correlate results with spec.Tests positionally.
// Rules whose parameter is S11 read the s11 trace; everything else reads
// s21.
func EvaluateSpec(s11, s21 []rf.Sample, ts *spec.TestSpec) []Result {
	results := make([]Result, 0, len(ts.Tests))
	for _, tp := range ts.Tests {
		trace := s21
		if tp.Parameter == rf.ParamS11 {
			trace = s11
		}
		results = append(results, EvaluateTestPoint(trace, tp))
	}
	return results
}

// Directions are validated at spec load, so evaluation only ever sees
// "over" or "under". ValidateDirections is a belt for callers that build
// specs programmatically instead of through the loader.
func ValidateDirections(ts *spec.TestSpec) error {
	for i, tp := range ts.Tests {
		switch tp.Direction {
		case spec.DirectionOver, spec.DirectionUnder:
		default:
			return fmt.Errorf("test %d (%q): %w: %q", i, tp.Name, spec.ErrUnknownDirection, tp.Direction)
		}
	}
	return nil
}
