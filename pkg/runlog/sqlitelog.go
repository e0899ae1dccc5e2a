package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS row_results (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	row       INTEGER NOT NULL,
	status    TEXT    NOT NULL,
	reasons   TEXT    NOT NULL DEFAULT '',
	timestamp TEXT    NOT NULL,
	run_id    TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_row_results_row ON row_results(row);
`

// SQLiteLog is a Log stored in a SQLite database. Entries are only ever
// inserted; the autoincrement id gives the append order.
type SQLiteLog struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens or creates a SQLite result log.
func OpenSQLite(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=FULL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure result database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create result schema: %w", err)
	}
	return &SQLiteLog{path: path, db: db}, nil
}

// readSQLite opens an existing database in query-only mode and returns its
// entries. A
// database without the results table holds no entries.
func readSQLite(ctx context.Context, path string) ([]Result, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'row_results'`).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect result database: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return (&SQLiteLog{path: path, db: db}).Results(ctx)
}

// Append inserts r. The insert is committed before Append returns.
func (l *SQLiteLog) Append(ctx context.Context, r Result) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO row_results (row, status, reasons, timestamp, run_id) VALUES (?, ?, ?, ?, ?)`,
		r.Row, string(r.Status), r.Reason(), r.Timestamp.UTC().Format(time.RFC3339Nano), r.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to append row %d: %w", r.Row, err)
	}
	return nil
}

// Results returns all entries ordered by insertion.
func (l *SQLiteLog) Results(ctx context.Context) ([]Result, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT row, status, reasons, timestamp, run_id FROM row_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			res     Result
			status  string
			reasons string
			ts      string
		)
		if err := rows.Scan(&res.Row, &status, &reasons, &ts, &res.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if res.Status, err = ParseStatus(status); err != nil {
			return nil, fmt.Errorf("row %d: %w", res.Row, err)
		}
		res.Reasons = splitReasons(reasons)
		if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			res.Timestamp = parsed
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
