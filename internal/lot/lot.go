// Package lot maintains the durable per-lot registry of tested units:
// pass/fail history per unique unit, derived yield, the spec checksum
// frozen at lot creation, and the on-disk run artifacts for every saved
// test run.
package lot

import (
	"encoding/json"
	"fmt"
)

// UnitEntry is one unit's latest verdict. Entries keep insertion order
// and serialise as a two-element ["unit_id", passed] array, the lot
// file's native shape.
type UnitEntry struct {
	ID     string
	Passed bool
}

// MarshalJSON encodes the entry as ["id", passed].
func (u UnitEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{u.ID, u.Passed})
}

// UnmarshalJSON decodes ["id", passed].
func (u *UnitEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("unit entry: %w", err)
	}
	if err := json.Unmarshal(pair[0], &u.ID); err != nil {
		return fmt.Errorf("unit entry id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &u.Passed); err != nil {
		return fmt.Errorf("unit entry verdict: %w", err)
	}
	return nil
}

// Lot is one production batch's ledger. The units table is the sole
// source of truth for yield; Samples is a raw run counter independent
// of it.
type Lot struct {
	Name         string
	Dir          string // storage directory; not serialised
	Samples      int
	Units        []UnitEntry
	PassedUnits  int
	FailedUnits  int
	Checksum     string // spec checksum frozen at creation, "" when none
	CreationDate string
	GoldenRun    string // designated golden-reference run id, optional
}

// Yield is passed unique units over total unique units, 0.0 when the
// lot has no units yet. Never derived from Samples.
func (l *Lot) Yield() float64 {
	if len(l.Units) == 0 {
		return 0.0
	}
	return float64(l.PassedUnits) / float64(len(l.Units))
}

// unitIndex returns the position of a unit in the table, or -1.
func (l *Lot) unitIndex(unitID string) int {
	for i, u := range l.Units {
		if u.ID == unitID {
			return i
		}
	}
	return -1
}

// Apply records a new verdict for one unit, walking the per-unit state
// machine:
//
//	unregistered -> passed/failed   registers the unit, bumps a count
//	passed <-> failed               moves one count each way (floor 0)
//	same state again                no count change
//
// Apply never touches Samples; RecordRun does that.
func (l *Lot) Apply(unitID string, passed bool) {
	i := l.unitIndex(unitID)
	if i < 0 {
		l.Units = append(l.Units, UnitEntry{ID: unitID, Passed: passed})
		if passed {
			l.PassedUnits++
		} else {
			l.FailedUnits++
		}
		return
	}

	prev := l.Units[i].Passed
	switch {
	case passed && !prev:
		l.Units[i].Passed = true
		l.PassedUnits++
		l.FailedUnits = max(0, l.FailedUnits-1)
	case !passed && prev:
		l.Units[i].Passed = false
		l.FailedUnits++
		l.PassedUnits = max(0, l.PassedUnits-1)
	}
}

// RecordRun counts one saved run and applies its verdict to the unit
// table. Every saved run increments Samples; only boolean verdicts
// reach Apply, so the counts invariant holds after every call.
func (l *Lot) RecordRun(unitID string, passed bool) {
	l.Samples++
	l.Apply(unitID, passed)
}

// lotFile is the on-disk JSON shape. Legacy documents predate the
// _units suffix and the units table; their counts are re-derived on
// load when a units list is available.
type lotFile struct {
	LotName      string      `json:"lot_name"`
	Samples      *int        `json:"samples"`
	PassedUnits  *int        `json:"passed_units,omitempty"`
	FailedUnits  *int        `json:"failed_units,omitempty"`
	LegacyPassed *int        `json:"passed,omitempty"`
	LegacyFailed *int        `json:"failed,omitempty"`
	Units        []UnitEntry `json:"units"`
	Yield        float64     `json:"yield"`
	Checksum     *string     `json:"checksum"`
	CreationDate string      `json:"creation_date"`
	GoldenRun    string      `json:"golden_run,omitempty"`
}

// MarshalJSON writes the current lot document format.
func (l *Lot) MarshalJSON() ([]byte, error) {
	units := l.Units
	if units == nil {
		units = []UnitEntry{}
	}
	var checksum *string
	if l.Checksum != "" {
		checksum = &l.Checksum
	}
	p, f := l.PassedUnits, l.FailedUnits
	samples := l.Samples
	return json.Marshal(lotFile{
		LotName:      l.Name,
		Samples:      &samples,
		PassedUnits:  &p,
		FailedUnits:  &f,
		Units:        units,
		Yield:        l.Yield(),
		Checksum:     checksum,
		CreationDate: l.CreationDate,
		GoldenRun:    l.GoldenRun,
	})
}

// UnmarshalJSON reads both current and legacy lot documents. Explicit
// passed_units/failed_units win; otherwise counts are re-derived from
// the units table when it is non-empty; legacy passed/failed fields are
// trusted only when there is no table to derive from.
func (l *Lot) UnmarshalJSON(data []byte) error {
	var file lotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("lot document: %w", err)
	}
	// A document without a samples counter is not a lot ledger at all,
	// just some JSON that happens to share a directory layout.
	if file.Samples == nil {
		return fmt.Errorf("lot document %q: missing samples count", file.LotName)
	}

	l.Name = file.LotName
	l.Samples = *file.Samples
	l.Units = file.Units
	l.CreationDate = file.CreationDate
	l.GoldenRun = file.GoldenRun
	if file.Checksum != nil {
		l.Checksum = *file.Checksum
	} else {
		l.Checksum = ""
	}

	switch {
	case file.PassedUnits != nil && file.FailedUnits != nil:
		l.PassedUnits = *file.PassedUnits
		l.FailedUnits = *file.FailedUnits
	case len(file.Units) > 0:
		p := 0
		for _, u := range file.Units {
			if u.Passed {
				p++
			}
		}
		l.PassedUnits = p
		l.FailedUnits = len(file.Units) - p
	default:
		switch {
		case file.PassedUnits != nil:
			l.PassedUnits = *file.PassedUnits
		case file.LegacyPassed != nil:
			l.PassedUnits = *file.LegacyPassed
		}
		switch {
		case file.FailedUnits != nil:
			l.FailedUnits = *file.FailedUnits
		case file.LegacyFailed != nil:
			l.FailedUnits = *file.LegacyFailed
		}
	}
	return nil
}
