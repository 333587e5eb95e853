package lot

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/rf"
	"github.com/rfbench/teststand/internal/spec"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	l, err := s.Create("batch-1", "cafebabe")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", l.Name)
	assert.Equal(t, "cafebabe", l.Checksum)
	assert.NotEmpty(t, l.CreationDate)

	got, err := s.Load("batch-1")
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.Checksum, got.Checksum)
	assert.Equal(t, s.lotDir("batch-1"), got.Dir)
}

func TestCreateExistingLoadsInsteadOfOverwriting(t *testing.T) {
	s := NewStore(t.TempDir())

	l, err := s.Create("batch-1", "aaa")
	require.NoError(t, err)
	l.RecordRun("SN1", true)
	require.NoError(t, s.Save(l))

	again, err := s.Create("batch-1", "bbb")
	require.NoError(t, err)
	assert.Equal(t, "aaa", again.Checksum, "existing lot keeps its frozen checksum")
	assert.Equal(t, 1, again.Samples)
}

func TestCreateEmptyName(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Create("", "x")
	assert.Error(t, err)
}

func TestLoadRejectsMismatchedName(t *testing.T) {
	s := NewStore(t.TempDir())
	dir := s.lotDir("batch-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := `{"lot_name": "other", "samples": 0, "units": [], "checksum": null, "creation_date": "2026-08-23T09:00:00Z"}`
	require.NoError(t, os.WriteFile(s.lotFile("batch-1"), []byte(doc), 0o644))

	_, err := s.Load("batch-1")
	assert.Error(t, err)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := NewStore(t.TempDir())
	l, err := s.Create("batch-1", "")
	require.NoError(t, err)
	require.NoError(t, s.Save(l))

	entries, err := os.ReadDir(s.lotDir("batch-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "batch-1.json", entries[0].Name())
}

func TestScanSkipsInvalidDirectories(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Create("batch-b", "")
	require.NoError(t, err)
	_, err = s.Create("batch-a", "")
	require.NoError(t, err)

	// A bare directory with no lot document is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir, "scratch"), 0o755))
	// A corrupt document is logged and skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "broken", "broken.json"), []byte("{"), 0o644))
	// A document without a samples counter is not a lot.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir, "nosamples"), 0o755))
	noSamples := `{"lot_name": "nosamples", "units": [], "checksum": null, "creation_date": "2026-08-23T09:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "nosamples", "nosamples.json"), []byte(noSamples), 0o644))

	lots, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "batch-a", lots[0].Name, "sorted by name")
	assert.Equal(t, "batch-b", lots[1].Name)
}

func TestScanMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	lots, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func savedRun() *eval.Run {
	minV := -42.0
	return &eval.Run{
		Serial:       "SN42",
		ID:           "run-1",
		Timestamp:    "2026-08-23T10:30:00Z",
		Meta:         "test_run",
		Passed:       true,
		PCBLot:       "PCB-7",
		TestChecksum: "cafebabe",
		Results: []eval.Result{
			{
				TP: spec.TestPoint{
					Name: "stopband", Parameter: rf.ParamS21,
					Frequency: 900_000_000, Span: 2_000_000,
					LimitDB: -30, Direction: spec.DirectionUnder,
				},
				Passed:  true,
				Min:     &minV,
				Max:     &minV,
				Failing: []int64{},
				Samples: 3,
			},
		},
	}
}

func TestSaveRunWritesArtifactsAndUpdatesLedger(t *testing.T) {
	s := NewStore(t.TempDir())
	l, err := s.Create("batch-1", "cafebabe")
	require.NoError(t, err)

	files, err := s.SaveRun(l, savedRun())
	require.NoError(t, err)

	// Run directory sits under the serial, stamped from the run time.
	assert.Equal(t, filepath.Join(l.Dir, "SN42", "23_08_26_10-30_run-1"), files.Dir)

	raw, err := os.ReadFile(files.ResultsJSON)
	require.NoError(t, err)
	var got eval.Run
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "run-1", got.ID)
	assert.True(t, got.Passed)

	f, err := os.Open(files.TableCSV)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "stopband", records[1][0])
	assert.Equal(t, "-30", records[1][4])

	// Ledger updated and persisted.
	reloaded, err := s.Load("batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Samples)
	assert.Equal(t, 1, reloaded.PassedUnits)

	// Both per-lot logs got a row.
	assert.FileExists(t, files.LogCSV)
	assert.FileExists(t, files.LogXLSX)
}

func TestSaveRunAnonymousUnitUsesRunID(t *testing.T) {
	s := NewStore(t.TempDir())
	l, err := s.Create("batch-1", "")
	require.NoError(t, err)

	run := savedRun()
	run.Serial = ""
	_, err = s.SaveRun(l, run)
	require.NoError(t, err)

	require.Len(t, l.Units, 1)
	assert.Equal(t, "run-1", l.Units[0].ID)
}

func TestSaveRunRejectsEmptyResults(t *testing.T) {
	s := NewStore(t.TempDir())
	l, err := s.Create("batch-1", "")
	require.NoError(t, err)

	run := savedRun()
	run.Results = nil
	_, err = s.SaveRun(l, run)
	assert.Error(t, err)
}
