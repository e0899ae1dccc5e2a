package runlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Log is an append-only store of row results.
type Log interface {
	// Append durably records one result.
	Append(ctx context.Context, r Result) error

	// Results returns every entry in append order.
	Results(ctx context.Context) ([]Result, error)

	// Close releases the underlying file or database.
	Close() error
}

// Open opens the log at path, creating it if needed. Files ending in .db,
// .sqlite or .sqlite3 use the SQLite backend; anything else is CSV.
func Open(path string) (Log, error) {
	if isSQLite(path) {
		return OpenSQLite(path)
	}
	return OpenCSV(path)
}

// Load reads every entry of the log at path without creating or changing
// it. A missing file holds no entries.
func Load(ctx context.Context, path string) ([]Result, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open result log: %w", err)
	}
	if isSQLite(path) {
		return readSQLite(ctx, path)
	}
	return ReadCSV(path)
}

func isSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}
