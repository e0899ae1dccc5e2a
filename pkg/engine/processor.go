package engine

import (
	"context"
	"errors"
	"time"

	"github.com/entrhq/formrunner/pkg/mapping"
	"github.com/entrhq/formrunner/pkg/runlog"
)

// RowProcessor turns one record into one result.
type RowProcessor interface {
	Process(ctx context.Context, rec Record) (runlog.Result, error)
}

// Processor resolves, validates and actuates a single record.
type Processor struct {
	cfg       *mapping.Config
	actuation Actuation
	now       func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor creates a Processor for cfg that applies plans through
// actuation.
func NewProcessor(cfg *mapping.Config, actuation Actuation, opts ...ProcessorOption) *Processor {
	p := &Processor{
		cfg:       cfg,
		actuation: actuation,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the row state machine. The returned error is non-nil only
// when the actuator became unavailable; the row then has no result.
func (p *Processor) Process(ctx context.Context, rec Record) (runlog.Result, error) {
	plan, reasons, err := p.prepare(rec)
	if err != nil {
		return runlog.Result{}, err
	}
	if len(reasons) > 0 {
		return p.result(rec, runlog.StatusValidationFailed, reasons), nil
	}

	outcome, err := p.actuation.Apply(ctx, plan)
	if err != nil {
		return runlog.Result{}, err
	}
	return p.result(rec, outcome.Status, outcome.Reasons), nil
}

// prepare resolves and validates every field. It returns the plan for a
// valid record or the full list of reasons for an invalid one.
func (p *Processor) prepare(rec Record) (Plan, []string, error) {
	plan := Plan{
		Row:    rec.Row,
		Target: p.cfg.Target,
		Submit: p.cfg.Submit.Locator,
	}

	var reasons []string
	for _, spec := range p.cfg.Fields {
		v, err := Resolve(rec, spec)
		if err != nil {
			var rerr *ResolutionError
			if !errors.As(err, &rerr) {
				return Plan{}, nil, err
			}
			reasons = append(reasons, rerr.Error())
			continue
		}

		for _, violation := range Validate(spec.Name, v, spec.Validators) {
			reasons = append(reasons, violation.Message)
		}

		if !IsAbsent(v) {
			plan.Steps = append(plan.Steps, Step{Field: spec.Name, Locator: spec.Locator, Value: v})
		}
	}
	return plan, reasons, nil
}

func (p *Processor) result(rec Record, status runlog.Status, reasons []string) runlog.Result {
	return runlog.Result{
		Row:       rec.Row,
		Status:    status,
		Reasons:   reasons,
		Timestamp: p.now(),
	}
}
