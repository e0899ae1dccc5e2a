package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/formrunner/pkg/mapping"
	"github.com/entrhq/formrunner/pkg/runlog"
)

// MockActuator is a testify mock of Actuator. Handles are the locator string.
type MockActuator struct {
	mock.Mock
}

func (m *MockActuator) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockActuator) Locate(ctx context.Context, locator string) (Handle, error) {
	args := m.Called(ctx, locator)
	return args.Get(0), args.Error(1)
}

func (m *MockActuator) SetValue(ctx context.Context, h Handle, v Value) error {
	args := m.Called(ctx, h, v)
	return args.Error(0)
}

func (m *MockActuator) Click(ctx context.Context, h Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockActuator) ReadState(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

// expectHappyPath stubs every call a successful submission makes.
func (m *MockActuator) expectHappyPath(cfg *mapping.Config) {
	m.On("Navigate", mock.Anything, cfg.Target).Return(nil)
	for _, f := range cfg.Fields {
		m.On("Locate", mock.Anything, f.Locator).Return(f.Locator, nil)
		m.On("SetValue", mock.Anything, f.Locator, mock.Anything).Return(nil)
	}
	m.On("Locate", mock.Anything, cfg.Submit.Locator).Return(cfg.Submit.Locator, nil)
	m.On("Click", mock.Anything, cfg.Submit.Locator).Return(nil)
	m.On("ReadState", mock.Anything, cfg.SuccessCheck.Locator).Return("Thank you for signing up", nil)
}

// memLog is an in-memory result log.
type memLog struct {
	mu      sync.Mutex
	results []runlog.Result
	err     error
}

func (l *memLog) Append(_ context.Context, r runlog.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.results = append(l.results, r)
	return nil
}

func (l *memLog) Results(_ context.Context) ([]runlog.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]runlog.Result(nil), l.results...), nil
}

func (l *memLog) Close() error { return nil }

const emailMapping = `
url: https://example.com/signup
submit_selector: "button[type=submit]"
success_check:
  selector: ".alert-success"
  text_contains: "Thank you"
fields:
  email:
    selector: "#email"
    required: true
    validators:
      - type: regex
        pattern: "[^@\\s]+@[^@\\s]+\\.[^@\\s]+"
        message: "Invalid email format"
`

const planMapping = `
url: https://example.com/signup
submit_selector: "#submit"
success_check:
  selector: "#done"
  text_contains: "ok"
fields:
  email:
    selector: "#email"
    required: true
    validators:
      - type: regex
        pattern: "[^@]+@[^@]+"
        message: "Invalid email format"
  plan:
    selector: "#plan"
    type: select
    validators:
      - type: enum
        values: [basic, pro]
        message: "Unknown plan"
  newsletter:
    selector: "#newsletter"
    type: checkbox
`

func mustParse(t *testing.T, doc string) *mapping.Config {
	t.Helper()
	cfg, err := mapping.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func rec(row int, kv ...string) Record {
	values := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return Record{Row: row, Values: values}
}
