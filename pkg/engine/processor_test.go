package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/formrunner/pkg/runlog"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestProcessor_EmailExample(t *testing.T) {
	cfg := mustParse(t, emailMapping)

	act := &MockActuator{}
	act.expectHappyPath(cfg)
	proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck), WithClock(fixedClock))
	ctx := context.Background()

	tests := []struct {
		name    string
		record  Record
		status  runlog.Status
		reasons []string
	}{
		{"valid", rec(1, "email", "a@b.com"), runlog.StatusSuccess, nil},
		{"bad format", rec(2, "email", "bad"), runlog.StatusValidationFailed, []string{"Invalid email format"}},
		{"missing", rec(3, "email", ""), runlog.StatusValidationFailed, []string{"Missing required field: email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := proc.Process(ctx, tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.record.Row, res.Row)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.reasons, res.Reasons)
			assert.Equal(t, fixedTime, res.Timestamp)
		})
	}

	// Only the valid row reached the page.
	act.AssertNumberOfCalls(t, "Navigate", 1)
	act.AssertCalled(t, "SetValue", mock.Anything, "#email", Text("a@b.com"))
}

func TestProcessor_MissingRequiredNeverActuates(t *testing.T) {
	cfg := mustParse(t, planMapping)
	act := &MockActuator{}
	proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

	res, err := proc.Process(context.Background(), rec(7, "plan", "pro", "newsletter", "yes"))
	require.NoError(t, err)

	assert.Equal(t, runlog.StatusValidationFailed, res.Status)
	assert.Equal(t, []string{"Missing required field: email"}, res.Reasons)
	act.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	act.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything)
	act.AssertNotCalled(t, "SetValue", mock.Anything, mock.Anything, mock.Anything)
	act.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
}

func TestProcessor_CollectsEveryViolation(t *testing.T) {
	cfg := mustParse(t, planMapping)
	act := &MockActuator{}
	proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

	res, err := proc.Process(context.Background(), rec(1, "email", "nope", "plan", "gold"))
	require.NoError(t, err)

	assert.Equal(t, runlog.StatusValidationFailed, res.Status)
	assert.Equal(t, []string{"Invalid email format", "Unknown plan"}, res.Reasons)
	assert.Equal(t, "Invalid email format; Unknown plan", res.Reason())
	act.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestProcessor_FillsInDeclarationOrder(t *testing.T) {
	cfg := mustParse(t, planMapping)
	act := &MockActuator{}
	act.expectHappyPath(cfg)
	cfg.SuccessCheck.TextContains = "Thank you"
	proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

	res, err := proc.Process(context.Background(), rec(1, "email", "a@b", "plan", "pro", "newsletter", "on"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusSuccess, res.Status)

	var order []string
	for _, call := range act.Calls {
		if call.Method == "SetValue" {
			order = append(order, call.Arguments.Get(1).(string))
		}
	}
	assert.Equal(t, []string{"#email", "#plan", "#newsletter"}, order)
	act.AssertCalled(t, "SetValue", mock.Anything, "#plan", Choice("pro"))
	act.AssertCalled(t, "SetValue", mock.Anything, "#newsletter", Checkbox(true))
	act.AssertCalled(t, "Click", mock.Anything, "#submit")
}

func TestProcessor_AbsentFieldIsNotTouched(t *testing.T) {
	cfg := mustParse(t, planMapping)
	act := &MockActuator{}
	act.expectHappyPath(cfg)
	cfg.SuccessCheck.TextContains = "Thank you"
	proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

	res, err := proc.Process(context.Background(), rec(1, "email", "a@b"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusSuccess, res.Status)

	act.AssertNotCalled(t, "Locate", mock.Anything, "#plan")
	act.AssertNotCalled(t, "Locate", mock.Anything, "#newsletter")
	act.AssertNumberOfCalls(t, "SetValue", 1)
}

func TestProcessor_ActuationFailures(t *testing.T) {
	cfg := mustParse(t, emailMapping)
	ctx := context.Background()

	t.Run("element not found", func(t *testing.T) {
		act := &MockActuator{}
		act.On("Navigate", mock.Anything, cfg.Target).Return(nil)
		act.On("Locate", mock.Anything, "#email").Return(nil, ErrNotFound)
		proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

		res, err := proc.Process(ctx, rec(1, "email", "a@b.com"))
		require.NoError(t, err)
		assert.Equal(t, runlog.StatusActuationFailed, res.Status)
		assert.Equal(t, []string{"locate email (#email): element not found"}, res.Reasons)
		act.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
	})

	t.Run("indicator text missing", func(t *testing.T) {
		act := &MockActuator{}
		act.On("Navigate", mock.Anything, cfg.Target).Return(nil)
		act.On("Locate", mock.Anything, mock.Anything).Return("h", nil)
		act.On("SetValue", mock.Anything, "h", Text("a@b.com")).Return(nil)
		act.On("Click", mock.Anything, "h").Return(nil)
		act.On("ReadState", mock.Anything, ".alert-success").Return("Something went wrong", nil)
		proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

		res, err := proc.Process(ctx, rec(1, "email", "a@b.com"))
		require.NoError(t, err)
		assert.Equal(t, runlog.StatusActuationFailed, res.Status)
		assert.Equal(t, []string{ReasonIndicatorNotFound}, res.Reasons)
		act.AssertExpectations(t)
	})

	t.Run("indicator element missing", func(t *testing.T) {
		act := &MockActuator{}
		act.On("Navigate", mock.Anything, cfg.Target).Return(nil)
		act.On("Locate", mock.Anything, mock.Anything).Return("h", nil)
		act.On("SetValue", mock.Anything, "h", mock.Anything).Return(nil)
		act.On("Click", mock.Anything, "h").Return(nil)
		act.On("ReadState", mock.Anything, ".alert-success").Return("", ErrNotFound)
		proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

		res, err := proc.Process(ctx, rec(1, "email", "a@b.com"))
		require.NoError(t, err)
		assert.Equal(t, runlog.StatusActuationFailed, res.Status)
		assert.Equal(t, []string{ReasonIndicatorNotFound}, res.Reasons)
	})

	t.Run("actuator unavailable is fatal", func(t *testing.T) {
		act := &MockActuator{}
		act.On("Navigate", mock.Anything, cfg.Target).Return(fmt.Errorf("browser closed: %w", ErrActuatorUnavailable))
		proc := NewProcessor(cfg, NewLiveActuation(act, cfg.SuccessCheck))

		_, err := proc.Process(ctx, rec(1, "email", "a@b.com"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrActuatorUnavailable))
	})
}

func TestProcessor_DryRun(t *testing.T) {
	cfg := mustParse(t, planMapping)
	dry := NewDryRunActuation()
	proc := NewProcessor(cfg, dry)

	res, err := proc.Process(context.Background(), rec(4, "email", "a@b", "plan", "basic"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusSuccess, res.Status)
	require.Len(t, res.Reasons, 1)
	assert.Equal(t, `dry run: would open https://example.com/signup, set email="a@b", plan="basic", click #submit`, res.Reasons[0])

	// Invalid rows still fail validation in a dry run.
	res, err = proc.Process(context.Background(), rec(5, "plan", "basic"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusValidationFailed, res.Status)

	assert.Equal(t, 1, dry.Count())
	last, ok := dry.Last()
	require.True(t, ok)
	assert.Equal(t, 4, last.Row)
	assert.Len(t, last.Steps, 2)
}

func stubSubmission(act *MockActuator, target string) {
	act.On("Navigate", mock.Anything, target).Return(nil)
	act.On("Locate", mock.Anything, mock.Anything).Return("h", nil)
	act.On("SetValue", mock.Anything, "h", mock.Anything).Return(nil)
	act.On("Click", mock.Anything, "h").Return(nil)
}

func TestLiveActuation_VerifyWaitsForText(t *testing.T) {
	cfg := mustParse(t, emailMapping)

	act := &MockActuator{}
	stubSubmission(act, cfg.Target)
	act.On("ReadState", mock.Anything, ".alert-success").Return("", nil).Once()
	act.On("ReadState", mock.Anything, ".alert-success").Return("Processing...", nil).Once()
	act.On("ReadState", mock.Anything, ".alert-success").Return("Thank you for signing up", nil)

	live := NewLiveActuation(act, cfg.SuccessCheck, WithVerifyWait(5*time.Second))
	live.poll = time.Millisecond

	res, err := NewProcessor(cfg, live).Process(context.Background(), rec(1, "email", "a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusSuccess, res.Status)
	act.AssertNumberOfCalls(t, "ReadState", 3)
}

func TestLiveActuation_VerifyWaitRunsOut(t *testing.T) {
	cfg := mustParse(t, emailMapping)

	act := &MockActuator{}
	stubSubmission(act, cfg.Target)
	act.On("ReadState", mock.Anything, ".alert-success").Return("Something went wrong", nil)

	live := NewLiveActuation(act, cfg.SuccessCheck, WithVerifyWait(20*time.Millisecond))
	live.poll = time.Millisecond

	res, err := NewProcessor(cfg, live).Process(context.Background(), rec(1, "email", "a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusActuationFailed, res.Status)
	assert.Equal(t, []string{ReasonIndicatorNotFound}, res.Reasons)
	reads := 0
	for _, call := range act.Calls {
		if call.Method == "ReadState" {
			reads++
		}
	}
	assert.Greater(t, reads, 1, "the banner is read more than once")
}

func TestLiveActuation_VerifyDoesNotRetryMissingElement(t *testing.T) {
	cfg := mustParse(t, emailMapping)

	act := &MockActuator{}
	stubSubmission(act, cfg.Target)
	act.On("ReadState", mock.Anything, ".alert-success").Return("", ErrNotFound)

	live := NewLiveActuation(act, cfg.SuccessCheck, WithVerifyWait(time.Minute))
	res, err := NewProcessor(cfg, live).Process(context.Background(), rec(1, "email", "a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusActuationFailed, res.Status)
	act.AssertNumberOfCalls(t, "ReadState", 1)
}
