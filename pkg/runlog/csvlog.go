package runlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultColumns is the header written to new CSV logs.
var DefaultColumns = []string{"row", "status", "reasons", "timestamp", "run_id"}

// CSVLog is a Log backed by a CSV file opened in append mode.
//
// When the file already exists its header is kept and new entries are
// written in that column order, so a log started by an older version of the
// tool (row,status,message) can keep growing.
type CSVLog struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	columns []string
}

// OpenCSV opens or creates a CSV log.
func OpenCSV(path string) (*CSVLog, error) {
	columns, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	for _, required := range []string{"row", "status"} {
		if columns != nil && !contains(columns, required) {
			return nil, fmt.Errorf("%s is not a result log: header has no %q column", path, required)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open result log: %w", err)
	}

	l := &CSVLog{
		path:    path,
		file:    file,
		writer:  csv.NewWriter(file),
		columns: columns,
	}

	if l.columns == nil {
		l.columns = DefaultColumns
		if err := l.writeRecord(l.columns); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write result log header: %w", err)
		}
	}
	return l, nil
}

// readHeader returns the existing header, or nil for a missing or empty file.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open result log: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read result log header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	return header, nil
}

func contains(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// Append writes r and syncs the file before returning.
func (l *CSVLog) Append(_ context.Context, r Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("result log %s is closed", l.path)
	}

	record := make([]string, len(l.columns))
	for i, col := range l.columns {
		switch col {
		case "row":
			record[i] = strconv.Itoa(r.Row)
		case "status":
			record[i] = string(r.Status)
		case "reasons", "message":
			record[i] = strings.Join(r.Reasons, reasonSep)
		case "timestamp":
			record[i] = r.Timestamp.UTC().Format(time.RFC3339Nano)
		case "run_id":
			record[i] = r.RunID
		}
	}
	if err := l.writeRecord(record); err != nil {
		return fmt.Errorf("failed to append row %d: %w", r.Row, err)
	}
	return nil
}

func (l *CSVLog) writeRecord(record []string) error {
	if err := l.writer.Write(record); err != nil {
		return err
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Results reads the whole file from disk.
func (l *CSVLog) Results(_ context.Context) ([]Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ReadCSV(l.path)
}

// Close closes the file. Safe to call more than once.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadCSV parses a CSV result log. A missing file yields no results.
func ReadCSV(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open result log: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read result log header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["row"]; !ok {
		return nil, fmt.Errorf("result log has no row column")
	}
	if _, ok := idx["status"]; !ok {
		return nil, fmt.Errorf("result log has no status column")
	}

	get := func(rec []string, col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var results []Result
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("result log line %d: %w", line, err)
		}

		row, err := strconv.Atoi(strings.TrimSpace(get(rec, "row")))
		if err != nil {
			return nil, fmt.Errorf("result log line %d: invalid row %q", line, get(rec, "row"))
		}
		status, err := ParseStatus(get(rec, "status"))
		if err != nil {
			return nil, fmt.Errorf("result log line %d: %w", line, err)
		}

		reasons := get(rec, "reasons")
		if reasons == "" {
			reasons = get(rec, "message")
		}
		res := Result{
			Row:     row,
			Status:  status,
			Reasons: splitReasons(reasons),
			RunID:   get(rec, "run_id"),
		}
		if ts := get(rec, "timestamp"); ts != "" {
			if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
				res.Timestamp = parsed
			}
		}
		results = append(results, res)
	}
	return results, nil
}
