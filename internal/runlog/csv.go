package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rfbench/teststand/internal/eval"
)

// readExistingHeader returns the header row of an existing CSV log, or
// nil when the file does not exist or is empty.
func readExistingHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log header %s: %w", path, err)
	}
	return header, nil
}

// AppendCSV appends one run row to the CSV log at path, writing the
// header first when the file is new. An established header always wins:
// appended rows carry exactly its columns, extra natural columns are
// dropped and missing ones left empty, so the schema never silently
// changes mid-lot.
func AppendCSV(path string, run *eval.Run, filter []string) error {
	existing, err := readExistingHeader(path)
	if err != nil {
		return err
	}

	fieldnames := existing
	writeHeader := false
	if len(fieldnames) == 0 {
		fieldnames = Header(run, filter)
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(fieldnames); err != nil {
			return fmt.Errorf("write log header %s: %w", path, err)
		}
	}

	row := Row(run)
	record := make([]string, len(fieldnames))
	for i, name := range fieldnames {
		record[i] = row[name]
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write log row %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush log %s: %w", path, err)
	}
	return nil
}
