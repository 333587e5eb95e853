package history

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rfbench/teststand/internal/spec"
)

// RuleStats summarises one rule's margin across a lot's archived runs.
// Margin is the worst in-window gain minus the limit, signed so that
// positive always means headroom: min-limit for a floor rule,
// limit-max for a ceiling rule.
type RuleStats struct {
	Name       string
	Runs       int
	PassedRuns int
	MeanMargin float64
	StdDev     float64
}

// PassRate is the fraction of archived runs where this rule passed.
func (r RuleStats) PassRate() float64 {
	if r.Runs == 0 {
		return 0.0
	}
	return float64(r.PassedRuns) / float64(r.Runs)
}

// LotStats computes per-rule margin statistics over a lot's archive.
// Rules are keyed by name; runs whose rule produced no samples
// contribute to the run count but not to the margin distribution.
func (s *Store) LotStats(lotName string) ([]RuleStats, error) {
	records, err := s.ListByLot(lotName, 0)
	if err != nil {
		return nil, err
	}

	margins := make(map[string][]float64)
	runs := make(map[string]int)
	passed := make(map[string]int)

	for _, rec := range records {
		results, err := rec.Results()
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			name := r.TP.Name
			runs[name]++
			if r.Passed {
				passed[name]++
			}
			m, ok := margin(r.TP.Direction, r.TP.LimitDB, r.Min, r.Max)
			if ok {
				margins[name] = append(margins[name], m)
			}
		}
	}

	names := make([]string, 0, len(runs))
	for name := range runs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]RuleStats, 0, len(names))
	for _, name := range names {
		rs := RuleStats{Name: name, Runs: runs[name], PassedRuns: passed[name]}
		if xs := margins[name]; len(xs) > 0 {
			rs.MeanMargin, rs.StdDev = stat.MeanStdDev(xs, nil)
			if len(xs) == 1 {
				rs.StdDev = 0
			}
		}
		out = append(out, rs)
	}
	return out, nil
}

func margin(dir spec.Direction, limit float64, min, max *float64) (float64, bool) {
	switch dir {
	case spec.DirectionOver:
		if min == nil {
			return 0, false
		}
		return *min - limit, true
	case spec.DirectionUnder:
		if max == nil {
			return 0, false
		}
		return limit - *max, true
	}
	return 0, false
}

// String renders one stats line for operator output.
func (r RuleStats) String() string {
	return fmt.Sprintf("%-24s runs=%-4d pass=%5.1f%% margin=%+.2f dB (σ %.2f)",
		r.Name, r.Runs, 100*r.PassRate(), r.MeanMargin, r.StdDev)
}
