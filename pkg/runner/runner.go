// Package runner wires a mapping, an input table, a result log and a browser
// session into one run of the row engine, and reports on it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/formrunner/pkg/browser"
	"github.com/entrhq/formrunner/pkg/engine"
	"github.com/entrhq/formrunner/pkg/logging"
	"github.com/entrhq/formrunner/pkg/mapping"
	"github.com/entrhq/formrunner/pkg/rodbrowser"
	"github.com/entrhq/formrunner/pkg/runlog"
	"github.com/entrhq/formrunner/pkg/table"
)

// ErrDriverStart is returned when the browser session cannot be opened.
var ErrDriverStart = errors.New("browser driver failed to start")

// Session is an open browser the run drives.
type Session interface {
	engine.Actuator
	Close() error
}

// Opener starts a browser session.
type Opener func(ctx context.Context, opts BrowserConfig) (Session, error)

// OpenBrowser is the default Opener. It starts the driver named in opts.
func OpenBrowser(ctx context.Context, opts BrowserConfig) (Session, error) {
	switch opts.Driver {
	case DriverRod:
		s, err := rodbrowser.Open(ctx, rodbrowser.Options{
			Bin:        opts.Bin,
			ControlURL: opts.ControlURL,
			Headless:   opts.Headless,
			Timeout:    opts.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := browser.Open(browser.Options{
			Browser:  opts.Engine,
			Headless: opts.Headless,
			Timeout:  opts.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Runner executes one run.
type Runner struct {
	cfg     *Config
	console *Console
	log     *logging.Logger
	open    Opener
	runID   string
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithOpener replaces the browser opener.
func WithOpener(open Opener) Option {
	return func(r *Runner) { r.open = open }
}

// WithConsole sets the console progress is printed to.
func WithConsole(c *Console) Option {
	return func(r *Runner) { r.console = c }
}

// WithLogger sets the diagnostic file logger. Its run ID becomes the run's.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithRunID fixes the run identifier.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// New validates cfg and creates a Runner.
func New(cfg *Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r := &Runner{
		cfg:  cfg,
		open: OpenBrowser,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.console == nil {
		r.console = NewConsole(ParseLevel(cfg.Logging.Verbosity))
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	if r.runID == "" {
		r.runID = r.log.RunID()
	}
	if r.runID == "" {
		r.runID = logging.NewRunID()
	}
	return r, nil
}

// RunID returns the identifier stamped on this run's results.
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes the input and returns the summary. The summary is returned
// even when err is non-nil and covers every row logged before the failure.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     r.runID,
		Status:    StatusCompleted,
		Mapping:   r.cfg.Mapping,
		Input:     r.cfg.Input,
		Log:       r.cfg.Log,
		DryRun:    r.cfg.DryRun,
		Resume:    r.cfg.Resume,
		StartTime: r.now(),
	}

	r.log.Infof("starting run %s: mapping=%s input=%s log=%s dry_run=%t resume=%t",
		r.runID, r.cfg.Mapping, r.cfg.Input, r.cfg.Log, r.cfg.DryRun, r.cfg.Resume)

	err := r.run(ctx, summary)

	summary.EndTime = r.now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		summary.Status = StatusInterrupted
		summary.Error = err.Error()
	default:
		summary.Status = StatusFailed
		summary.Error = err.Error()
	}

	if r.cfg.Artifacts.Enabled {
		writer := NewArtifactWriter(r.cfg.Artifacts.OutputDir)
		if werr := writer.WriteAll(summary); werr != nil {
			r.console.Warningf("failed to write artifacts: %v", werr)
			r.log.Warnf("failed to write artifacts: %v", werr)
		} else {
			r.console.Verbosef("Artifacts written to %s", writer.Dir())
		}
	}

	r.log.Infof("run %s %s: %s", r.runID, summary.Status, summary.DoneLine())
	if err != nil {
		r.log.Errorf("run %s: %v", r.runID, err)
	}
	r.console.Summary(summary)
	return summary, err
}

func (r *Runner) run(ctx context.Context, summary *RunSummary) error {
	cfg, err := mapping.Load(r.cfg.Mapping)
	if err != nil {
		return err
	}
	r.console.Verbosef("Loaded mapping %s (%d fields)", r.cfg.Mapping, len(cfg.Fields))

	tbl, err := table.Read(r.cfg.Input, r.cfg.Sheet)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	summary.Records = len(tbl.Records)
	r.log.Infof("loaded %d records from %s", len(tbl.Records), r.cfg.Input)
	for _, name := range MissingColumns(cfg, tbl) {
		r.console.Warningf("field %q has no column in %s", name, r.cfg.Input)
	}

	filter, err := table.ParseFilter(r.cfg.Filter)
	if err != nil {
		return err
	}
	if !filter.Empty() {
		r.console.Verbosef("Filter: %s", r.cfg.Filter)
	}
	for _, col := range filter.Columns() {
		if !tbl.HasColumn(col) {
			return fmt.Errorf("filter refers to unknown column %q", col)
		}
	}

	var (
		results runlog.Log
		ledger  *runlog.Ledger
	)
	if r.cfg.DryRun {
		// A dry run never creates or writes the log; it only reads it to
		// preview a resume.
		if r.cfg.Resume {
			entries, err := runlog.Load(ctx, r.cfg.Log)
			if err != nil {
				return err
			}
			ledger = runlog.NewLedger(entries)
		}
	} else {
		results, err = runlog.Open(r.cfg.Log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := results.Close(); cerr != nil {
				r.log.Warnf("failed to close result log: %v", cerr)
			}
		}()
		if r.cfg.Resume {
			if ledger, err = runlog.LoadLedger(ctx, results); err != nil {
				return err
			}
		}
	}
	if r.cfg.Resume {
		r.console.Infof("Resuming: %d rows already succeeded", ledger.Len())
	}

	actuation, appender, release, err := r.prepare(ctx, cfg, results)
	if err != nil {
		return err
	}
	defer release()

	r.console.Header(fmt.Sprintf("Submitting %d records to %s", len(tbl.Records), cfg.Target))

	rowLog := r.log.With("engine")

	coord := engine.NewCoordinator(engine.NewProcessor(cfg, actuation), appender, engine.Options{
		Start:  r.cfg.Start,
		End:    r.cfg.End,
		Filter: filter.Match,
		Resume: r.cfg.Resume,
		Ledger: ledger,
		RunID:  r.runID,
		OnResult: func(res runlog.Result) {
			summary.Results = append(summary.Results, res)
			r.console.Row(res)
			rowLog.Infof("row %d: %s %s", res.Row, res.Status, res.Reason())
		},
	})

	counts, err := coord.Run(ctx, tbl.Records)
	summary.Counts = counts
	return err
}

// prepare selects the actuation for the run. A dry run never opens a browser
// and never writes the result log, so a later resume is not affected by it.
func (r *Runner) prepare(ctx context.Context, cfg *mapping.Config, results runlog.Log) (engine.Actuation, engine.Appender, func(), error) {
	if r.cfg.DryRun {
		r.console.Infof("Dry run: no browser is started and the result log is not written")
		return engine.NewDryRunActuation(), discardLog{}, func() {}, nil
	}

	opts := r.browserOptions(cfg)
	browserLog := r.log.With("browser")
	summary := fmt.Sprintf("%s/%s headless=%t", opts.Driver, opts.Engine, opts.Headless)
	r.console.Verbosef("Starting browser %s", summary)
	browserLog.Infof("starting browser %s", summary)

	session, err := r.open(ctx, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrDriverStart, err)
	}
	release := func() {
		if cerr := session.Close(); cerr != nil {
			browserLog.Warnf("failed to close browser: %v", cerr)
		}
	}
	wait := opts.Timeout
	if wait <= 0 {
		wait = browser.DefaultTimeout
	}
	live := engine.NewLiveActuation(session, cfg.SuccessCheck, engine.WithVerifyWait(wait))
	return live, results, release, nil
}

// browserOptions merges the run configuration with the mapping's browser
// settings. Explicit run settings win.
func (r *Runner) browserOptions(cfg *mapping.Config) BrowserConfig {
	opts := r.cfg.Browser
	if opts.Driver == "" {
		opts.Driver = cfg.Driver
	}
	if opts.Driver == "" {
		opts.Driver = DriverPlaywright
	}
	if opts.Engine == "" {
		opts.Engine = cfg.Browser
	}
	opts.Engine = browser.NormalizeBrowser(opts.Engine)
	if opts.Engine == "" && opts.Driver == DriverPlaywright {
		opts.Engine = browser.DefaultBrowser
	}
	opts.Headless = opts.Headless || cfg.Headless
	return opts
}

// MissingColumns returns the mapping fields that have no input column and no
// default, in declaration order.
func MissingColumns(cfg *mapping.Config, tbl *table.Table) []string {
	var missing []string
	for _, f := range cfg.Fields {
		if f.Default == nil && !tbl.HasColumn(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

type discardLog struct{}

func (discardLog) Append(context.Context, runlog.Result) error { return nil }
