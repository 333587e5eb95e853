package lot

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/runlog"
)

// RunFiles lists the artifacts written for one saved run.
type RunFiles struct {
	Dir         string
	ResultsJSON string
	TableCSV    string
	LogCSV      string
	LogXLSX     string
}

// xlsxLogFilter matches the columns the spreadsheet log omits for
// readability; the CSV log keeps every column.
var xlsxLogFilter = []string{"samples", "failing", "passed"}

// SaveRun persists one test run into the lot: the per-run results JSON
// and CSV table under <lot>/<serial>/<stamp>_<id>/, the updated lot
// document, and one row in each per-lot log.
//
// The verdict always survives a persistence failure: run artifacts are
// written before the ledger mutates, and a failed ledger write leaves
// the updated in-memory lot intact so Store.Save can be retried. Log
// rows are best effort and only logged on failure.
func (s *Store) SaveRun(l *Lot, run *eval.Run) (*RunFiles, error) {
	if run == nil || len(run.Results) == 0 {
		return nil, fmt.Errorf("lot %s: no results to save", l.Name)
	}
	if run.Timestamp == "" {
		run.Timestamp = time.Now().Format(time.RFC3339)
	}

	stamp := time.Now().Format("02_01_06_15-04")
	if ts, err := time.Parse(time.RFC3339, run.Timestamp); err == nil {
		stamp = ts.Format("02_01_06_15-04")
	}

	serialDir := run.Serial
	if serialDir == "" {
		serialDir = run.ID
	}
	runDir := filepath.Join(l.Dir, serialDir, fmt.Sprintf("%s_%s", stamp, run.ID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	files := &RunFiles{
		Dir:         runDir,
		ResultsJSON: filepath.Join(runDir, fmt.Sprintf("results_%s_%s.json", run.Serial, run.ID)),
		TableCSV:    filepath.Join(runDir, fmt.Sprintf("table_%s_%s.csv", run.Serial, run.ID)),
		LogCSV:      filepath.Join(l.Dir, l.Name+"_log.csv"),
		LogXLSX:     filepath.Join(l.Dir, l.Name+"_log.xlsx"),
	}

	if err := writeResultsJSON(files.ResultsJSON, run); err != nil {
		return nil, err
	}
	if err := writeResultsTable(files.TableCSV, run); err != nil {
		return nil, err
	}

	// Read-modify-write of the ledger is one logical unit; the atomic
	// replace in Save keeps the previous document intact on a crash.
	l.RecordRun(run.UnitID(), run.Passed)
	if err := s.Save(l); err != nil {
		return files, fmt.Errorf("persist lot after run %s: %w", run.ID, err)
	}

	if err := runlog.AppendCSV(files.LogCSV, run, nil); err != nil {
		log.Printf("[LotStore] CSV log append failed for run %s: %v", run.ID, err)
	}
	if err := runlog.AppendXLSX(files.LogXLSX, run, xlsxLogFilter); err != nil {
		log.Printf("[LotStore] XLSX log append failed for run %s: %v", run.ID, err)
	}

	return files, nil
}

// writeResultsJSON writes the full run record.
func writeResultsJSON(path string, run *eval.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run results: %w", err)
	}
	return nil
}

// writeResultsTable writes the compact per-rule summary table.
func writeResultsTable(path string, run *eval.Run) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write run table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"name", "parameter", "frequency", "span", "limit_db", "direction", "passed", "min", "max", "samples"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write run table header: %w", err)
	}
	for _, r := range run.Results {
		record := []string{
			r.TP.Name,
			string(r.TP.Parameter),
			strconv.FormatInt(r.TP.Frequency, 10),
			strconv.FormatInt(r.TP.Span, 10),
			strconv.FormatFloat(r.TP.LimitDB, 'g', -1, 64),
			string(r.TP.Direction),
			strconv.FormatBool(r.Passed),
			formatOptional(r.Min),
			formatOptional(r.Max),
			strconv.Itoa(r.Samples),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write run table row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush run table: %w", err)
	}
	return nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
