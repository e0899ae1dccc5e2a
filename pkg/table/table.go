// Package table reads the input records of a run from CSV or Excel files.
//
// The first row is the header. Every following row is a record whose identity
// is its 1-based position after the header: the line offset for CSV and the
// sheet row offset for Excel. Blank rows are not returned but still take a
// number, so identities stay stable when a file is edited by hand.
package table

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/entrhq/formrunner/pkg/engine"
)

// Table is a header plus its records in file order.
type Table struct {
	Columns []string
	Records []engine.Record
}

// HasColumn reports whether name is one of the header columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Read loads path, choosing the reader by extension. Excel files use the
// first sheet unless sheet is set.
func Read(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	case ".csv", ".txt", "":
		return ReadCSVFile(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
}

// builder turns raw rows into records.
type builder struct {
	columns []string
	index   []int
}

func newBuilder(header []string) (*builder, error) {
	b := &builder{}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		b.columns = append(b.columns, name)
		b.index = append(b.index, i)
	}
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("header row has no columns")
	}
	return b, nil
}

// record builds the record for row. ok is false for a blank row.
func (b *builder) record(row int, cells []string) (engine.Record, bool) {
	values := make(map[string]string, len(b.columns))
	blank := true
	for j, name := range b.columns {
		i := b.index[j]
		if i >= len(cells) {
			continue
		}
		values[name] = cells[i]
		if strings.TrimSpace(cells[i]) != "" {
			blank = false
		}
	}
	if blank {
		return engine.Record{}, false
	}
	return engine.Record{Row: row, Values: values}, true
}
