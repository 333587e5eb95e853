package runlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/rf"
	"github.com/rfbench/teststand/internal/spec"
)

func sampleRun() *eval.Run {
	minA, maxA := -12.5, -8.0
	return &eval.Run{
		Serial:       "SN42",
		ID:           "run-1",
		Timestamp:    "2026-08-23T10:00:00Z",
		Meta:         "test_run",
		Passed:       false,
		PCBLot:       "PCB-7",
		TestChecksum: "abc123",
		Results: []eval.Result{
			{
				TP: spec.TestPoint{
					Name: "900MHz S21", Parameter: rf.ParamS21,
					Frequency: 900_000_000, Span: 3_000_000,
					LimitDB: -30.0, Direction: spec.DirectionUnder,
				},
				Passed:  true,
				Min:     &minA,
				Max:     &maxA,
				Failing: []int64{},
				Samples: 11,
			},
			{
				TP: spec.TestPoint{
					Name: "Passband #1", Parameter: rf.ParamS11,
					Frequency: 2_400_000_000, Span: 0,
					LimitDB: -10.0, Direction: spec.DirectionOver,
				},
				Passed:  false,
				Failing: []int64{2_400_000_000},
				Samples: 1,
			},
		},
	}
}

func TestSanitizePrefix(t *testing.T) {
	assert.Equal(t, "900MHz_S21", sanitizePrefix("900MHz S21", 1))
	assert.Equal(t, "Passband__1", sanitizePrefix("Passband #1", 2))
	assert.Equal(t, "tp3", sanitizePrefix("", 3))
	assert.Equal(t, "a-b_c", sanitizePrefix("a-b_c", 1))
}

func TestRulePrefixesDeduplicates(t *testing.T) {
	results := []eval.Result{
		{TP: spec.TestPoint{Name: "band"}},
		{TP: spec.TestPoint{Name: "band"}},
		{TP: spec.TestPoint{Name: "band"}},
	}
	assert.Equal(t, []string{"band", "band_2", "band_3"}, rulePrefixes(results))
}

func TestRulePrefixesSkipNaturalNameCollisions(t *testing.T) {
	// A generated suffix must never shadow a rule actually named that way.
	results := []eval.Result{
		{TP: spec.TestPoint{Name: "band"}},
		{TP: spec.TestPoint{Name: "band"}},
		{TP: spec.TestPoint{Name: "band_2"}},
	}
	got := rulePrefixes(results)
	assert.Equal(t, []string{"band", "band_2", "band_2_2"}, got)

	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p], "duplicate prefix %s", p)
		seen[p] = true
	}
}

func TestHeaderLayout(t *testing.T) {
	header := Header(sampleRun(), nil)

	require.GreaterOrEqual(t, len(header), len(TopFields))
	assert.Equal(t, TopFields, header[:len(TopFields)])
	assert.Contains(t, header, "900MHz_S21_limit_db")
	assert.Contains(t, header, "900MHz_S21_failing")
	assert.Contains(t, header, "Passband__1_direction")
}

func TestHeaderFilterOnlyRemovesRuleAttributes(t *testing.T) {
	header := Header(sampleRun(), []string{"samples", "failing", "passed"})

	// Top-level "passed" survives even though the per-rule attribute is
	// filtered.
	assert.Contains(t, header, "passed")
	assert.NotContains(t, header, "900MHz_S21_passed")
	assert.NotContains(t, header, "900MHz_S21_samples")
	assert.NotContains(t, header, "900MHz_S21_failing")
	assert.Contains(t, header, "900MHz_S21_min")
}

func TestRowValues(t *testing.T) {
	row := Row(sampleRun())

	assert.Equal(t, "SN42", row["serial"])
	assert.Equal(t, "false", row["passed"])
	assert.Equal(t, "abc123", row["test_checksum"])
	assert.Equal(t, "-30", row["900MHz_S21_limit_db"])
	assert.Equal(t, "-12.5", row["900MHz_S21_min"])
	assert.Equal(t, "[]", row["900MHz_S21_failing"])
	assert.Equal(t, "[2400000000]", row["Passband__1_failing"])
	assert.Equal(t, "", row["Passband__1_min"], "nil min renders empty")
}

func TestAppendCSVWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot_log.csv")
	run := sampleRun()

	require.NoError(t, AppendCSV(path, run, nil))
	require.NoError(t, AppendCSV(path, run, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3, "header + two rows")
	assert.Equal(t, Header(run, nil), records[0])
	assert.Equal(t, len(records[0]), len(records[1]))
}

func TestAppendCSVConformsToEstablishedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot_log.csv")

	// Establish a narrow schema first.
	require.NoError(t, os.WriteFile(path, []byte("timestamp,serial,passed\n"), 0o644))

	run := sampleRun()
	require.NoError(t, AppendCSV(path, run, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []string{"timestamp", "serial", "passed"}, records[0],
		"established header never changes")
	assert.Equal(t, []string{"2026-08-23T10:00:00Z", "SN42", "false"}, records[1],
		"row restricted to the established columns")
}

func TestAppendXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot_log.xlsx")
	run := sampleRun()

	require.NoError(t, AppendXLSX(path, run, []string{"samples", "failing", "passed"}))
	require.NoError(t, AppendXLSX(path, run, []string{"samples", "failing", "passed"}))

	// Reopen through the CSV-equivalent header check: the first row must
	// be the filtered header, followed by two data rows.
	rows := readXLSXRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Header(run, []string{"samples", "failing", "passed"}), rows[0])
	for _, col := range rows[0] {
		assert.False(t, strings.HasSuffix(col, "_samples"), "filtered column %s leaked", col)
	}
}
