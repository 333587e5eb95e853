// Package runlog appends flattened test-run rows to per-lot tabular
// logs. CSV and XLSX are two encodings of the same header/row model:
// fixed top-level columns followed by per-rule columns prefixed with the
// sanitised rule name.
package runlog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rfbench/teststand/internal/eval"
)

// TopFields are the fixed leading columns of every log. Column filters
// never remove them.
var TopFields = []string{"timestamp", "serial", "id", "meta", "passed", "pcb_lot", "test_checksum"}

// ruleAttrs are the static rule attributes exposed per test point.
var ruleAttrs = []string{"parameter", "frequency", "span", "limit_db", "direction"}

// resultAttrs are the computed result attributes exposed per test point.
var resultAttrs = []string{"passed", "min", "max", "failing", "samples"}

// sanitizePrefix turns a rule name into a safe column prefix. Empty
// names fall back to tpN (1-based).
func sanitizePrefix(name string, index int) string {
	if name == "" {
		return fmt.Sprintf("tp%d", index)
	}
	out := make([]rune, 0, len(name))
	for _, ch := range name {
		if ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '-' || ch == '_' {
			out = append(out, ch)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

// rulePrefixes computes the unique column prefix for each result, in
// order. Duplicate names get a numeric suffix from the second
// occurrence on; a suffixed candidate that collides with a natural
// name (rules "band", "band", "band_2") keeps counting until free.
func rulePrefixes(results []eval.Result) []string {
	prefixes := make([]string, 0, len(results))
	used := make(map[string]bool, len(results))
	for i, r := range results {
		prefix := sanitizePrefix(r.TP.Name, i+1)
		if used[prefix] {
			n := 2
			for used[fmt.Sprintf("%s_%d", prefix, n)] {
				n++
			}
			prefix = fmt.Sprintf("%s_%d", prefix, n)
		}
		used[prefix] = true
		prefixes = append(prefixes, prefix)
	}
	return prefixes
}

// Header derives the natural column set for a run: the top-level fields
// followed by per-rule columns. filter names per-rule attributes to
// omit (un-prefixed, e.g. "samples"); it never touches top-level
// columns.
func Header(run *eval.Run, filter []string) []string {
	filt := toSet(filter)
	header := append([]string{}, TopFields...)
	for _, prefix := range rulePrefixes(run.Results) {
		for _, a := range ruleAttrs {
			if !filt[a] {
				header = append(header, prefix+"_"+a)
			}
		}
		for _, a := range resultAttrs {
			if !filt[a] {
				header = append(header, prefix+"_"+a)
			}
		}
	}
	return header
}

// Row flattens a run into column values keyed by header name. Values
// are stringified for the tabular encodings; failing frequency lists
// are embedded as JSON arrays.
func Row(run *eval.Run) map[string]string {
	row := map[string]string{
		"timestamp":     run.Timestamp,
		"serial":        run.Serial,
		"id":            run.ID,
		"meta":          run.Meta,
		"passed":        strconv.FormatBool(run.Passed),
		"pcb_lot":       run.PCBLot,
		"test_checksum": run.TestChecksum,
	}
	prefixes := rulePrefixes(run.Results)
	for i, r := range run.Results {
		prefix := prefixes[i]
		row[prefix+"_parameter"] = string(r.TP.Parameter)
		row[prefix+"_frequency"] = strconv.FormatInt(r.TP.Frequency, 10)
		row[prefix+"_span"] = strconv.FormatInt(r.TP.Span, 10)
		row[prefix+"_limit_db"] = strconv.FormatFloat(r.TP.LimitDB, 'g', -1, 64)
		row[prefix+"_direction"] = string(r.TP.Direction)
		row[prefix+"_passed"] = strconv.FormatBool(r.Passed)
		row[prefix+"_min"] = formatOptional(r.Min)
		row[prefix+"_max"] = formatOptional(r.Max)
		row[prefix+"_failing"] = encodeFailing(r.Failing)
		row[prefix+"_samples"] = strconv.Itoa(r.Samples)
	}
	return row
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func encodeFailing(failing []int64) string {
	if failing == nil {
		failing = []int64{}
	}
	data, err := json.Marshal(failing)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
