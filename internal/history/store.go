// Package history keeps a queryable cross-lot archive of completed test
// runs in SQLite. The per-lot JSON documents remain the source of truth
// for yield; this store exists for search and statistics across lots.
package history

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rfbench/teststand/internal/eval"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunRecord is one archived run row.
type RunRecord struct {
	RunID        string
	LotName      string
	Serial       string
	PCBLot       string
	Passed       bool
	TestChecksum string
	CreatedAt    time.Time
	ResultsJSON  string
}

// Results decodes the archived per-rule results.
func (r *RunRecord) Results() ([]eval.Result, error) {
	var results []eval.Result
	if err := json.Unmarshal([]byte(r.ResultsJSON), &results); err != nil {
		return nil, fmt.Errorf("decode results for run %s: %w", r.RunID, err)
	}
	return results, nil
}

// Store is the SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// retryOnBusy retries fn while SQLite reports the database locked,
// backing off briefly. Concurrent CLI invocations sharing one archive
// make transient lock errors routine rather than exceptional.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 20 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Insert archives one run under its lot. Runs without an id are
// assigned a fresh one.
func (s *Store) Insert(lotName string, run *eval.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("encode results for run %s: %w", run.ID, err)
	}
	createdAt := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, run.Timestamp); err == nil {
		createdAt = ts.UTC()
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (run_id, lot_name, serial, pcb_lot, passed, test_checksum, created_at, results_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, lotName, run.Serial, run.PCBLot, run.Passed, run.TestChecksum,
			createdAt.Format(time.RFC3339), string(resultsJSON),
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}
		return nil
	})
}

// Get returns one archived run by id.
func (s *Store) Get(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT run_id, lot_name, serial, pcb_lot, passed, test_checksum, created_at, results_json
		 FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: not found", runID)
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListByLot returns a lot's archived runs, newest first. A limit of
// zero or less returns every run.
func (s *Store) ListByLot(lotName string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT is unlimited
	}
	rows, err := s.db.Query(
		`SELECT run_id, lot_name, serial, pcb_lot, passed, test_checksum, created_at, results_json
		 FROM runs WHERE lot_name = ? ORDER BY created_at DESC, run_id LIMIT ?`,
		lotName, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for lot %s: %w", lotName, err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs for lot %s: %w", lotName, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs for lot %s: %w", lotName, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var createdAt string
	if err := row.Scan(&rec.RunID, &rec.LotName, &rec.Serial, &rec.PCBLot,
		&rec.Passed, &rec.TestChecksum, &createdAt, &rec.ResultsJSON); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}
