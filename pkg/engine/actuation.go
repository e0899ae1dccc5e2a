package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/formrunner/pkg/mapping"
	"github.com/entrhq/formrunner/pkg/runlog"
)

// ReasonIndicatorNotFound is recorded when the success check fails.
const ReasonIndicatorNotFound = "success indicator not found"

// Step sets one field.
type Step struct {
	Field   string
	Locator string
	Value   Value
}

// Plan is the full set of actions for one validated record.
type Plan struct {
	Row    int
	Target string
	Steps  []Step
	Submit string
}

// Describe renders the plan as a single line.
func (p Plan) Describe() string {
	parts := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		parts = append(parts, fmt.Sprintf("%s=%q", s.Field, s.Value.String()))
	}
	fields := "no fields"
	if len(parts) > 0 {
		fields = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("open %s, set %s, click %s", p.Target, fields, p.Submit)
}

// Outcome is the terminal state produced by an Actuation.
type Outcome struct {
	Status  runlog.Status
	Reasons []string
}

// Actuation carries a plan out. A non-nil error is fatal for the run and is
// only returned for ErrActuatorUnavailable; every other failure is reported
// through the Outcome.
type Actuation interface {
	Apply(ctx context.Context, plan Plan) (Outcome, error)
}

const defaultVerifyPoll = 250 * time.Millisecond

// LiveActuation fills the real form through an Actuator and verifies the
// submission with the success check.
type LiveActuation struct {
	act   Actuator
	check mapping.SuccessCheck
	wait  time.Duration
	poll  time.Duration
}

// LiveOption configures a LiveActuation.
type LiveOption func(*LiveActuation)

// WithVerifyWait keeps re-reading the success element for up to d while its
// text does not yet contain the expected content. Zero reads it once.
func WithVerifyWait(d time.Duration) LiveOption {
	return func(a *LiveActuation) { a.wait = d }
}

// NewLiveActuation creates a LiveActuation.
func NewLiveActuation(act Actuator, check mapping.SuccessCheck, opts ...LiveOption) *LiveActuation {
	a := &LiveActuation{act: act, check: check, poll: defaultVerifyPoll}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply navigates, fills every step in order, submits and verifies. It stops
// at the first failure.
func (a *LiveActuation) Apply(ctx context.Context, plan Plan) (Outcome, error) {
	if err := a.act.Navigate(ctx, plan.Target); err != nil {
		return failed(fmt.Sprintf("open %s", plan.Target), err)
	}

	for _, step := range plan.Steps {
		h, err := a.act.Locate(ctx, step.Locator)
		if err != nil {
			return failed(fmt.Sprintf("locate %s (%s)", step.Field, step.Locator), err)
		}
		if err := a.act.SetValue(ctx, h, step.Value); err != nil {
			return failed(fmt.Sprintf("set %s", step.Field), err)
		}
	}

	submit, err := a.act.Locate(ctx, plan.Submit)
	if err != nil {
		return failed(fmt.Sprintf("locate submit (%s)", plan.Submit), err)
	}
	if err := a.act.Click(ctx, submit); err != nil {
		return failed("submit", err)
	}

	return a.verify(ctx)
}

// verify reads the success element until its text contains the expected
// content or the verify wait runs out. A missing element is not retried: the
// actuator has already waited for it.
func (a *LiveActuation) verify(ctx context.Context) (Outcome, error) {
	notFound := Outcome{Status: runlog.StatusActuationFailed, Reasons: []string{ReasonIndicatorNotFound}}
	deadline := time.Now().Add(a.wait)
	for {
		text, err := a.act.ReadState(ctx, a.check.Locator)
		if err != nil {
			if errors.Is(err, ErrActuatorUnavailable) {
				return Outcome{}, err
			}
			return notFound, nil
		}
		if strings.Contains(text, a.check.TextContains) {
			return Outcome{Status: runlog.StatusSuccess}, nil
		}
		if !time.Now().Before(deadline) {
			return notFound, nil
		}

		select {
		case <-ctx.Done():
			return notFound, nil
		case <-time.After(a.poll):
		}
	}
}

func failed(action string, err error) (Outcome, error) {
	if errors.Is(err, ErrActuatorUnavailable) {
		return Outcome{}, fmt.Errorf("%s: %w", action, err)
	}
	return Outcome{
		Status:  runlog.StatusActuationFailed,
		Reasons: []string{fmt.Sprintf("%s: %v", action, err)},
	}, nil
}

// DryRunActuation never touches a page. It reports success with a
// description of what a live run would submit, and keeps only the most
// recent plan.
type DryRunActuation struct {
	mu    sync.Mutex
	count int
	last  Plan
}

// NewDryRunActuation creates an empty DryRunActuation.
func NewDryRunActuation() *DryRunActuation {
	return &DryRunActuation{}
}

func (d *DryRunActuation) Apply(_ context.Context, plan Plan) (Outcome, error) {
	d.mu.Lock()
	d.count++
	d.last = plan
	d.mu.Unlock()

	return Outcome{
		Status:  runlog.StatusSuccess,
		Reasons: []string{"dry run: would " + plan.Describe()},
	}, nil
}

// Count returns how many plans were applied.
func (d *DryRunActuation) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Last returns the most recently applied plan.
func (d *DryRunActuation) Last() (Plan, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.count > 0
}
