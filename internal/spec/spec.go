// Package spec defines the declarative limit-rule model for filter tests
// and its JSON loader.
//
// A test spec file looks like:
//
//	{
//	  "sweep": { "start": 700000000, "stop": 6000000000, "points": 201, "segments": 30 },
//	  "tests": [
//	    {
//	      "name": "900MHz S21",
//	      "parameter": "S21",
//	      "frequency": 900000000,
//	      "span": 3000000,
//	      "limit_db": -30.0,
//	      "direction": "under"
//	    }
//	  ],
//	  "meta": { "id": "test1", "author": "JL" }
//	}
//
// Spec identity is the MD5 checksum of the raw file bytes, frozen at load
// time. A byte-identical re-save keeps the identity; any edit changes it.
package spec

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rfbench/teststand/internal/rf"
)

// Direction says which side of the limit the response must stay on.
type Direction string

// Direction constants
const (
	DirectionOver  Direction = "over"  // gain must stay at or above the limit
	DirectionUnder Direction = "under" // gain must stay at or below the limit
)

// ErrUnknownDirection is returned at load time for a direction that is
// neither "over" nor "under". Unknown directions fail closed here so the
// evaluation engine never sees one.
var ErrUnknownDirection = errors.New("unknown limit direction")

// TestPoint is a single frequency-window dB limit check. Immutable once
// loaded.
type TestPoint struct {
	Name      string       `json:"name"`
	Parameter rf.Parameter `json:"parameter"`
	Frequency int64        `json:"frequency"` // window centre, Hz
	Span      int64        `json:"span"`      // window width, Hz
	LimitDB   float64      `json:"limit_db"`
	Direction Direction    `json:"direction"`
}

// Window returns the inclusive frequency bounds of the rule,
// [frequency - span/2, frequency + span/2] with floor integer division.
func (tp TestPoint) Window() (low, high int64) {
	half := tp.Span / 2
	return tp.Frequency - half, tp.Frequency + half
}

// SweepHint carries the optional sweep-configuration hint from the spec
// file. It is advisory only; the evaluation engine never reads it.
type SweepHint struct {
	Start    int64 `json:"start"`
	Stop     int64 `json:"stop"`
	Points   int   `json:"points"`
	Segments int   `json:"segments"`
}

// TestSpec is an ordered collection of rules plus the optional sweep hint.
type TestSpec struct {
	Sweep    *SweepHint                 `json:"sweep,omitempty"`
	Tests    []TestPoint                `json:"tests"`
	Meta     map[string]json.RawMessage `json:"meta,omitempty"`
	Checksum string                     `json:"-"` // MD5 of the raw file bytes
}

// specFile mirrors the on-disk JSON shape before defaults are applied.
type specFile struct {
	Sweep *SweepHint                 `json:"sweep"`
	Tests []testFile                 `json:"tests"`
	Meta  map[string]json.RawMessage `json:"meta"`
}

type testFile struct {
	Name      string  `json:"name"`
	Parameter string  `json:"parameter"`
	Frequency int64   `json:"frequency"`
	Span      *int64  `json:"span"`
	LimitDB   float64 `json:"limit_db"`
	Direction *string `json:"direction"`
}

// Parse builds a TestSpec from raw JSON bytes, applying defaults and
// validating at the model boundary: an omitted direction defaults to
// "over"; any other unrecognised value is an error.
func Parse(raw []byte) (*TestSpec, error) {
	var file specFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse test spec: %w", err)
	}

	ts := &TestSpec{
		Sweep: file.Sweep,
		Tests: make([]TestPoint, 0, len(file.Tests)),
		Meta:  file.Meta,
	}
	for i, t := range file.Tests {
		dir := DirectionOver
		if t.Direction != nil && *t.Direction != "" {
			switch Direction(*t.Direction) {
			case DirectionOver, DirectionUnder:
				dir = Direction(*t.Direction)
			default:
				return nil, fmt.Errorf("test %d (%q): %w: %q", i, t.Name, ErrUnknownDirection, *t.Direction)
			}
		}
		var span int64
		if t.Span != nil {
			span = *t.Span
		}
		if span < 0 {
			return nil, fmt.Errorf("test %d (%q): negative span %d", i, t.Name, span)
		}
		ts.Tests = append(ts.Tests, TestPoint{
			Name:      t.Name,
			Parameter: rf.ParseParameter(t.Parameter),
			Frequency: t.Frequency,
			Span:      span,
			LimitDB:   t.LimitDB,
			Direction: dir,
		})
	}

	sum := md5.Sum(raw)
	ts.Checksum = hex.EncodeToString(sum[:])
	return ts, nil
}

// Load reads and parses a test spec file.
func Load(path string) (*TestSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load test spec %s: %w", path, err)
	}
	return Parse(raw)
}
