// Package runlog persists per-row outcomes of a run and rebuilds the resume
// ledger from them.
//
// A Log is append-only: every Append is durable before it returns, and no
// entry is ever rewritten. Two backends are provided, a CSV file (the default,
// readable in any spreadsheet) and a SQLite database.
package runlog

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal outcome of one row.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusValidationFailed Status = "validation_failed"
	StatusActuationFailed  Status = "actuation_failed"
	StatusSkipped          Status = "skipped"
)

// ParseStatus converts a logged status string. "failed" is read as an
// actuation failure so logs written by older tools stay readable.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusValidationFailed:
		return StatusValidationFailed, nil
	case StatusActuationFailed, "failed":
		return StatusActuationFailed, nil
	case StatusSkipped:
		return StatusSkipped, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Failed reports whether the status is one of the failure outcomes.
func (s Status) Failed() bool {
	return s == StatusValidationFailed || s == StatusActuationFailed
}

// Result is one Result Log entry.
type Result struct {
	Row       int       `json:"row"`
	Status    Status    `json:"status"`
	Reasons   []string  `json:"reasons,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}

// Reason joins the reasons into one human-readable line.
func (r Result) Reason() string {
	return strings.Join(r.Reasons, "; ")
}

// reasonSep separates reasons in single-column storage.
const reasonSep = "; "

func splitReasons(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, reasonSep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
