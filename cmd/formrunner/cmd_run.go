package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entrhq/formrunner/pkg/logging"
	"github.com/entrhq/formrunner/pkg/runner"
)

// runFlags holds the flags of the run command. Only flags the user set
// override the configuration file.
type runFlags struct {
	config       string
	mapping      string
	input        string
	sheet        string
	log          string
	start        int
	end          int
	filter       string
	resume       bool
	dryRun       bool
	headless     bool
	browser      string
	driver       string
	timeout      time.Duration
	artifactsDir string
	noArtifacts  bool
	logDir       string
}

func newRunCmd() *cobra.Command {
	return (&runFlags{}).command()
}

func (f *runFlags) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit every selected row of the input through the form",
		Long: `Reads the input table, then for each selected row resolves and validates
the mapped values, fills and submits the form and appends one result to the log.

Examples:
  # Submit every row
  formrunner run --map signup.yaml --input people.csv --log results.csv

  # Preview rows 10 to 19 without a browser
  formrunner run --map signup.yaml --input people.xlsx --start 10 --end 20 --dry-run

  # Continue after an interrupted run
  formrunner run --config run.yaml --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return runSubmission(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "Run configuration file (YAML)")
	flags.StringVarP(&f.mapping, "map", "m", "", "Field mapping file (YAML)")
	flags.StringVarP(&f.input, "input", "i", "", "Input table (.csv, .xlsx, .xlsm)")
	flags.StringVar(&f.sheet, "sheet", "", "Excel sheet name (default: first sheet)")
	flags.StringVarP(&f.log, "log", "o", "", "Result log (.csv, or .db/.sqlite for SQLite) (default \"results.csv\")")
	flags.IntVar(&f.start, "start", 0, "First row to process (1-based, inclusive)")
	flags.IntVar(&f.end, "end", 0, "Row to stop before (exclusive, 0 = no limit)")
	flags.StringVar(&f.filter, "filter", "", `Row filter, e.g. "status == active && email ~ *@example.com"`)
	flags.BoolVar(&f.resume, "resume", false, "Skip rows the result log records as successful")
	flags.BoolVar(&f.dryRun, "dry-run", false, "Validate and describe each submission without a browser")
	flags.BoolVar(&f.headless, "headless", false, "Run the browser without a window")
	flags.StringVar(&f.browser, "browser", "", "Browser engine: chromium, firefox or webkit")
	flags.StringVar(&f.driver, "driver", "", "Browser driver: playwright or rod")
	flags.DurationVar(&f.timeout, "timeout", 0, "Per-operation browser timeout (default 10s)")
	flags.StringVar(&f.artifactsDir, "artifacts-dir", "", "Directory for run.json and summary.md")
	flags.BoolVar(&f.noArtifacts, "no-artifacts", false, "Do not write run artifacts")
	flags.StringVar(&f.logDir, "log-dir", "", "Directory for diagnostic run logs (default ~/.formrunner/logs)")
	flags.StringVar(&f.mapping, "mapping", "", "Alias of --map")
	_ = flags.MarkHidden("mapping")
	return cmd
}

// resolve builds the run configuration: defaults, then the config file, then
// the flags that were set.
func (f *runFlags) resolve(cmd *cobra.Command) (*runner.Config, error) {
	cfg := runner.DefaultConfig()
	if f.config != "" {
		loaded, err := runner.LoadConfig(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("map") || changed("mapping") {
		cfg.Mapping = f.mapping
	}
	if changed("input") {
		cfg.Input = f.input
	}
	if changed("sheet") {
		cfg.Sheet = f.sheet
	}
	if changed("log") {
		cfg.Log = f.log
	}
	if changed("start") {
		cfg.Start = f.start
	}
	if changed("end") {
		cfg.End = f.end
	}
	if changed("filter") {
		cfg.Filter = f.filter
	}
	if changed("resume") {
		cfg.Resume = f.resume
	}
	if changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if changed("browser") {
		cfg.Browser.Engine = f.browser
	}
	if changed("driver") {
		cfg.Browser.Driver = f.driver
	}
	if changed("timeout") {
		cfg.Browser.Timeout = f.timeout
	}
	if changed("artifacts-dir") {
		cfg.Artifacts.OutputDir = f.artifactsDir
	}
	if f.noArtifacts {
		cfg.Artifacts.Enabled = false
	}
	if changed("log-dir") {
		cfg.Logging.Dir = f.logDir
	}
	cfg.Logging.Verbosity = verbosity(cfg.Logging.Verbosity)

	return cfg, cfg.Validate()
}

func runSubmission(cmd *cobra.Command, cfg *runner.Config) error {
	runLog, err := logging.New(cfg.Logging.Dir, logging.NewRunID(), "runner")
	if err != nil {
		logger.Warn("run log falls back to stderr", zap.String("dir", cfg.Logging.Dir), zap.Error(err))
	}
	defer runLog.Close()

	console := runner.NewConsoleWriter(runner.ParseLevel(cfg.Logging.Verbosity), cmd.OutOrStdout())
	r, err := runner.New(cfg, runner.WithLogger(runLog), runner.WithConsole(console))
	if err != nil {
		return err
	}

	logger.Debug("starting run",
		zap.String("run_id", r.RunID()),
		zap.String("mapping", cfg.Mapping),
		zap.String("input", cfg.Input),
		zap.String("log", cfg.Log),
		zap.String("diagnostics", runLog.LogPath()),
	)

	summary, err := r.Run(cmd.Context())
	if err != nil {
		logger.Debug("run ended with error", zap.String("status", summary.Status), zap.Error(err))
		return err
	}
	logger.Debug("run completed", zap.Int("visited", summary.Counts.Visited), zap.Duration("duration", summary.Duration))
	return nil
}
