package table

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads a table from an Excel workbook. An empty sheet selects the
// first sheet of the workbook.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %q: %w", path, sheet, err)
	}

	// Leading empty rows are skipped; the first non-empty row is the header.
	start := 0
	for start < len(rows) && len(rows[start]) == 0 {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}

	b, err := newBuilder(rows[start])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &Table{Columns: b.columns}
	for i := start + 1; i < len(rows); i++ {
		if rec, ok := b.record(i-start, rows[i]); ok {
			t.Records = append(t.Records, rec)
		}
	}
	return t, nil
}
