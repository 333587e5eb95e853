package rf

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadTrace parses a captured trace from CSV input with one
// "frequency,gain" record per sample. A header row is skipped when the
// first field is not numeric. Frequencies must be strictly increasing.
func ReadTrace(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var samples []Sample
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trace record: %w", err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("trace line %d: expected frequency,gain", line)
		}
		freq, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			if line == 1 {
				// header row
				continue
			}
			return nil, fmt.Errorf("trace line %d: bad frequency %q", line, record[0])
		}
		gain, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: bad gain %q", line, record[1])
		}
		if n := len(samples); n > 0 && freq <= samples[n-1].Frequency {
			return nil, fmt.Errorf("trace line %d: frequency %d not strictly increasing", line, freq)
		}
		samples = append(samples, Sample{Frequency: freq, Gain: gain})
	}
	return samples, nil
}

// LoadTraceFile reads a trace CSV from disk. A missing path returns an
// empty trace so callers can evaluate single-parameter sweeps.
func LoadTraceFile(path string) ([]Sample, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	defer f.Close()
	return ReadTrace(f)
}
