package runlog

import (
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rfbench/teststand/internal/eval"
)

const xlsxSheet = "Sheet1"

// AppendXLSX appends one run row to the spreadsheet log at path,
// creating the workbook with a header row when the file is new. The
// header/row model and established-header rule match AppendCSV exactly;
// only the encoding differs. Timestamps are written as real datetimes
// when they parse, so spreadsheet tools sort them natively.
func AppendXLSX(path string, run *eval.Run, filter []string) error {
	var f *excelize.File
	var fieldnames []string

	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("open log %s: %w", path, err)
		}
		rows, err := f.GetRows(xlsxSheet)
		if err != nil {
			f.Close()
			return fmt.Errorf("read log %s: %w", path, err)
		}
		if len(rows) > 0 {
			fieldnames = rows[0]
		}
	} else {
		f = excelize.NewFile()
	}
	defer f.Close()

	if len(fieldnames) == 0 {
		fieldnames = Header(run, filter)
		header := make([]any, len(fieldnames))
		for i, name := range fieldnames {
			header[i] = name
		}
		if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
			return fmt.Errorf("write log header %s: %w", path, err)
		}
	}

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		return fmt.Errorf("read log %s: %w", path, err)
	}
	next := len(rows) + 1

	row := Row(run)
	values := make([]any, len(fieldnames))
	for i, name := range fieldnames {
		v := row[name]
		if name == "timestamp" {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				values[i] = ts
				continue
			}
		}
		values[i] = v
	}

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return fmt.Errorf("log cell %s: %w", path, err)
	}
	if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
		return fmt.Errorf("write log row %s: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save log %s: %w", path, err)
	}
	return nil
}
