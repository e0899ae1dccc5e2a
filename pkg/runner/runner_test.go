package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/formrunner/pkg/engine"
	"github.com/entrhq/formrunner/pkg/logging"
	"github.com/entrhq/formrunner/pkg/mapping"
	"github.com/entrhq/formrunner/pkg/runlog"
)

const testMapping = `
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
  plan:
    selector: "#plan"
    type: select
    default: basic
`

const testInput = "email,plan,country\n" +
	"a@b.com,pro,US\n" +
	"bad,basic,US\n" +
	"c@d.com,,DE\n"

// fakeSession is an in-memory browser page.
type fakeSession struct {
	mu        sync.Mutex
	navigated int
	values    map[string]engine.Value
	closed    bool
	banner    string
}

func newFakeSession() *fakeSession {
	return &fakeSession{values: make(map[string]engine.Value), banner: "Thank you!"}
}

func (f *fakeSession) Navigate(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated++
	return nil
}

func (f *fakeSession) Locate(_ context.Context, locator string) (engine.Handle, error) {
	return locator, nil
}

func (f *fakeSession) SetValue(_ context.Context, h engine.Handle, v engine.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[h.(string)] = v
	return nil
}

func (f *fakeSession) Click(_ context.Context, _ engine.Handle) error { return nil }

func (f *fakeSession) ReadState(_ context.Context, _ string) (string, error) {
	return f.banner, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fixture struct {
	dir     string
	cfg     *Config
	session *fakeSession
	opened  int
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "map.yaml"), []byte(testMapping), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.csv"), []byte(testInput), 0o644))

	cfg := DefaultConfig()
	cfg.Mapping = filepath.Join(dir, "map.yaml")
	cfg.Input = filepath.Join(dir, "people.csv")
	cfg.Log = filepath.Join(dir, "results.csv")
	cfg.Artifacts.OutputDir = filepath.Join(dir, "artifacts")

	return &fixture{dir: dir, cfg: cfg, session: newFakeSession(), out: &bytes.Buffer{}}
}

func (f *fixture) runner(t *testing.T, runID string) *Runner {
	t.Helper()
	open := func(_ context.Context, _ BrowserConfig) (Session, error) {
		f.opened++
		return f.session, nil
	}
	r, err := New(f.cfg,
		WithOpener(open),
		WithConsole(NewConsoleWriter(LevelVerbose, f.out)),
		WithRunID(runID),
	)
	require.NoError(t, err)
	return r
}

func TestRunner_LiveRun(t *testing.T) {
	f := newFixture(t)

	summary, err := f.runner(t, "run-1").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, engine.Summary{Visited: 3, Succeeded: 2, ValidationFailed: 1}, summary.Counts)
	assert.Equal(t, "Done. Success: 2, Failed: 1, Skipped: 0", summary.DoneLine())
	assert.Contains(t, f.out.String(), "Done. Success: 2, Failed: 1, Skipped: 0")

	assert.Equal(t, 1, f.opened)
	assert.True(t, f.session.closed, "the browser is released at the end of the run")
	assert.Equal(t, 2, f.session.navigated)
	assert.Equal(t, engine.Choice("basic"), f.session.values["#plan"], "blank cell falls back to the default")

	results, err := runlog.ReadCSV(f.cfg.Log)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, runlog.StatusValidationFailed, results[1].Status)
	assert.Equal(t, []string{"Invalid email format"}, results[1].Reasons)
	assert.Equal(t, "run-1", results[0].RunID)

	data, err := os.ReadFile(filepath.Join(f.cfg.Artifacts.OutputDir, "run.json"))
	require.NoError(t, err)
	var decoded RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Results, 3)

	md, err := os.ReadFile(filepath.Join(f.cfg.Artifacts.OutputDir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "| 2 | validation_failed | Invalid email format |")
}

func TestRunner_Resume(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner(t, "first").Run(context.Background())
	require.NoError(t, err)

	f.session = newFakeSession()
	f.cfg.Resume = true
	summary, err := f.runner(t, "second").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts.Skipped)
	assert.Equal(t, 1, summary.Counts.ValidationFailed)
	assert.Equal(t, 0, f.session.navigated, "rows that already succeeded are not submitted again")

	results, err := runlog.ReadCSV(f.cfg.Log)
	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.Equal(t, []int{1, 3}, runlog.NewLedger(results).Rows())
}

func TestRunner_DryRun(t *testing.T) {
	f := newFixture(t)
	f.cfg.DryRun = true

	summary, err := f.runner(t, "dry").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, f.opened, "a dry run never starts a browser")
	assert.Equal(t, 2, summary.Counts.Succeeded)
	assert.Equal(t, 1, summary.Counts.ValidationFailed)

	_, err = os.Stat(f.cfg.Log)
	assert.True(t, os.IsNotExist(err), "a dry run does not create the result log")
}

func TestRunner_DryRunResumeLeavesNoLog(t *testing.T) {
	f := newFixture(t)
	f.cfg.DryRun = true
	f.cfg.Resume = true

	summary, err := f.runner(t, "dry").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts.Skipped)

	_, err = os.Stat(f.cfg.Log)
	assert.True(t, os.IsNotExist(err), "resuming a dry run does not create the result log")
}

func TestRunner_DryRunResumePreviewsLedger(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner(t, "live").Run(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(f.cfg.Log)
	require.NoError(t, err)

	f.cfg.DryRun = true
	f.cfg.Resume = true
	summary, err := f.runner(t, "preview").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts.Skipped)
	assert.Equal(t, 1, summary.Counts.ValidationFailed)

	after, err := os.ReadFile(f.cfg.Log)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRunner_RangeAndFilter(t *testing.T) {
	f := newFixture(t)
	f.cfg.Start = 1
	f.cfg.End = 3
	f.cfg.Filter = "country == US && email ~ *@*"

	summary, err := f.runner(t, "slice").Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, 1, summary.Results[0].Row)
}

func TestRunner_DriverStartFailure(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.cfg,
		WithOpener(func(context.Context, BrowserConfig) (Session, error) {
			return nil, errors.New("executable doesn't exist")
		}),
		WithConsole(NewConsoleWriter(LevelQuiet, f.out)),
	)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDriverStart))
	assert.Equal(t, StatusFailed, summary.Status)
	assert.Equal(t, 0, summary.Counts.Visited)
}

func TestRunner_Interrupted(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.runner(t, "cancelled").Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusInterrupted, summary.Status)
	assert.True(t, f.session.closed)
}

func TestRunner_FatalSessionLoss(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.cfg,
		WithOpener(func(context.Context, BrowserConfig) (Session, error) {
			return &lostSession{fakeSession: newFakeSession()}, nil
		}),
		WithConsole(NewConsoleWriter(LevelQuiet, f.out)),
	)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.ErrorIs(t, err, engine.ErrActuatorUnavailable)
	assert.Equal(t, StatusFailed, summary.Status)

	results, rerr := runlog.ReadCSV(f.cfg.Log)
	require.NoError(t, rerr)
	assert.Empty(t, results)
}

func mustLoadMapping(t *testing.T, f *fixture) *mapping.Config {
	t.Helper()
	cfg, err := mapping.Load(f.cfg.Mapping)
	require.NoError(t, err)
	return cfg
}

type lostSession struct {
	*fakeSession
}

func (l *lostSession) Navigate(context.Context, string) error {
	return engine.ErrActuatorUnavailable
}

func TestRunner_FilterUnknownColumn(t *testing.T) {
	f := newFixture(t)
	f.cfg.Filter = "region == EU"

	_, err := f.runner(t, "x").Run(context.Background())
	assert.ErrorContains(t, err, `unknown column "region"`)
	assert.Equal(t, 0, f.opened)
}

func TestRunner_ConfigErrorAbortsBeforeRows(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.cfg.Mapping, []byte("url: https://example.com\n"), 0o644))

	summary, err := f.runner(t, "x").Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, summary.Status)
	assert.Equal(t, 0, f.opened)
}

func TestRunner_UsesLoggerRunID(t *testing.T) {
	f := newFixture(t)
	logger, err := logging.New(t.TempDir(), "from-logger", "runner")
	require.NoError(t, err)
	defer logger.Close()

	r, err := New(f.cfg, WithLogger(logger), WithConsole(NewConsoleWriter(LevelQuiet, f.out)))
	require.NoError(t, err)
	assert.Equal(t, "from-logger", r.RunID())
}

func TestBrowserOptions(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, "x")

	cfg := mustLoadMapping(t, f)
	cfg.Browser = "firefox"
	cfg.Headless = true

	opts := r.browserOptions(cfg)
	assert.Equal(t, DriverPlaywright, opts.Driver)
	assert.Equal(t, "firefox", opts.Engine)
	assert.True(t, opts.Headless)
	assert.Equal(t, 10*time.Second, opts.Timeout)

	f.cfg.Browser.Engine = "webkit"
	f.cfg.Browser.Driver = DriverRod
	opts = r.browserOptions(cfg)
	assert.Equal(t, DriverRod, opts.Driver)
	assert.Equal(t, "webkit", opts.Engine)
}

func TestBrowserOptions_LegacyChromeSetting(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, "x")

	cfg := mustLoadMapping(t, f)
	cfg.Browser = "chrome"

	opts := r.browserOptions(cfg)
	assert.Equal(t, "chromium", opts.Engine)
}
