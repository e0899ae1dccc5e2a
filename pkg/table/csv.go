package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadCSVFile reads a CSV table from path.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads a CSV table. Rows may be shorter or longer than the header;
// missing cells are treated as absent columns.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("input is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	headerLine, _ := reader.FieldPos(0)
	prevEnd := headerLine + lineBreaks(header)

	b, err := newBuilder(header)
	if err != nil {
		return nil, err
	}

	// Rows are numbered by record, not by line: a quoted cell may span
	// lines. The reader drops blank lines, so each line between two records
	// is a blank row that still takes a number.
	t := &Table{Columns: b.columns}
	row := 0
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		start, _ := reader.FieldPos(0)
		if blank := start - prevEnd - 1; blank > 0 {
			row += blank
		}
		row++
		prevEnd = start + lineBreaks(cells)

		if rec, ok := b.record(row, cells); ok {
			t.Records = append(t.Records, rec)
		}
	}
	return t, nil
}

// lineBreaks counts the newlines inside the cells of one record.
func lineBreaks(cells []string) int {
	n := 0
	for _, c := range cells {
		n += strings.Count(c, "\n")
	}
	return n
}
