package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/formrunner/pkg/runlog"
)

// ReasonAlreadySucceeded is recorded for rows skipped by resume.
const ReasonAlreadySucceeded = "already succeeded in a previous run"

// Appender is the part of a result log the coordinator writes to.
type Appender interface {
	Append(ctx context.Context, r runlog.Result) error
}

// Options selects which records a run visits.
type Options struct {
	// Start and End bound the row numbers processed: Start <= row < End.
	// Zero means unbounded on that side.
	Start int
	End   int

	// Filter, when set, must return true for a record to be processed.
	Filter func(Record) bool

	// Resume skips rows found in Ledger.
	Resume bool
	Ledger *runlog.Ledger

	// RunID is stamped on every result.
	RunID string

	// OnResult is called after each result has been appended.
	OnResult func(runlog.Result)
}

// InRange reports whether row falls in [Start, End).
func (o Options) InRange(row int) bool {
	if o.Start > 0 && row < o.Start {
		return false
	}
	if o.End > 0 && row >= o.End {
		return false
	}
	return true
}

// Summary counts the results of a run.
type Summary struct {
	Visited          int `json:"visited"`
	Succeeded        int `json:"succeeded"`
	ValidationFailed int `json:"validation_failed"`
	ActuationFailed  int `json:"actuation_failed"`
	Skipped          int `json:"skipped"`
}

// Failed is the number of rows that ended in either failure status.
func (s Summary) Failed() int {
	return s.ValidationFailed + s.ActuationFailed
}

func (s *Summary) add(r runlog.Result) {
	s.Visited++
	switch r.Status {
	case runlog.StatusSuccess:
		s.Succeeded++
	case runlog.StatusValidationFailed:
		s.ValidationFailed++
	case runlog.StatusActuationFailed:
		s.ActuationFailed++
	case runlog.StatusSkipped:
		s.Skipped++
	}
}

// Coordinator runs a record sequence through a RowProcessor and logs every
// visited row.
type Coordinator struct {
	proc RowProcessor
	log  Appender
	opts Options
	now  func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(proc RowProcessor, log Appender, opts Options) *Coordinator {
	return &Coordinator{
		proc: proc,
		log:  log,
		opts: opts,
		now:  time.Now,
	}
}

// Run processes records sequentially in input order.
//
// Cancellation of ctx is honoured between rows: the row in progress finishes
// and is logged, then Run returns ctx.Err(). A fatal processor error or a
// failed append also stops the run. The summary always covers the rows that
// were logged.
func (c *Coordinator) Run(ctx context.Context, records []Record) (Summary, error) {
	var sum Summary

	// Rows run to completion once started.
	rowCtx := context.WithoutCancel(ctx)

	for _, rec := range records {
		if !c.opts.InRange(rec.Row) {
			continue
		}
		if c.opts.Filter != nil && !c.opts.Filter(rec) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		var res runlog.Result
		if c.opts.Resume && c.opts.Ledger.Succeeded(rec.Row) {
			res = runlog.Result{
				Row:       rec.Row,
				Status:    runlog.StatusSkipped,
				Reasons:   []string{ReasonAlreadySucceeded},
				Timestamp: c.now(),
			}
		} else {
			var err error
			res, err = c.proc.Process(rowCtx, rec)
			if err != nil {
				return sum, fmt.Errorf("row %d: %w", rec.Row, err)
			}
		}
		res.RunID = c.opts.RunID

		if err := c.log.Append(rowCtx, res); err != nil {
			return sum, fmt.Errorf("failed to log row %d: %w", rec.Row, err)
		}
		sum.add(res)

		if c.opts.OnResult != nil {
			c.opts.OnResult(res)
		}
	}
	return sum, nil
}
