package runlog

import (
	"context"
	"fmt"
	"sort"
)

// Ledger is the set of rows whose most recent logged outcome is success.
// It is built once before a run and never changes afterwards.
type Ledger struct {
	rows map[int]struct{}
}

// NewLedger derives a ledger from results in append order. For a row logged
// more than once, the last entry wins. A skipped entry means the row had
// already succeeded, so it keeps the row in the ledger.
func NewLedger(results []Result) *Ledger {
	last := make(map[int]Status, len(results))
	for _, r := range results {
		if r.Status == StatusSkipped {
			if _, seen := last[r.Row]; seen {
				continue
			}
			last[r.Row] = StatusSuccess
			continue
		}
		last[r.Row] = r.Status
	}

	l := &Ledger{rows: make(map[int]struct{})}
	for row, status := range last {
		if status == StatusSuccess {
			l.rows[row] = struct{}{}
		}
	}
	return l
}

// LoadLedger reads every entry of log and derives a ledger from it.
func LoadLedger(ctx context.Context, log Log) (*Ledger, error) {
	results, err := log.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read result log: %w", err)
	}
	return NewLedger(results), nil
}

// Succeeded reports whether row is already complete. A nil ledger is empty.
func (l *Ledger) Succeeded(row int) bool {
	if l == nil {
		return false
	}
	_, ok := l.rows[row]
	return ok
}

// Len returns the number of completed rows.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.rows)
}

// Rows returns the completed rows in ascending order.
func (l *Ledger) Rows() []int {
	if l == nil {
		return nil
	}
	rows := make([]int, 0, len(l.rows))
	for row := range l.rows {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}
