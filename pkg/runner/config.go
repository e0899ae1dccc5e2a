package runner

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Config represents the configuration of a single run.
type Config struct {
	// Mapping is the path of the YAML field mapping.
	Mapping string `yaml:"mapping" json:"mapping"`

	// Input is the CSV or Excel file holding the records.
	Input string `yaml:"input" json:"input"`
	Sheet string `yaml:"sheet" json:"sheet,omitempty"`

	// Log is the result log. A .db/.sqlite suffix selects SQLite, anything
	// else CSV.
	Log string `yaml:"log" json:"log"`

	// Row selection
	Start  int    `yaml:"start" json:"start,omitempty"`
	End    int    `yaml:"end" json:"end,omitempty"`
	Filter string `yaml:"filter" json:"filter,omitempty"`

	Resume bool `yaml:"resume" json:"resume"`
	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// Browser settings. Empty values fall back to the mapping, then to the
	// driver defaults.
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`
	Logging   LoggingConfig  `yaml:"logging" json:"logging"`
}

// BrowserConfig selects and tunes the browser driver.
type BrowserConfig struct {
	Driver   string        `yaml:"driver" json:"driver"`
	Engine   string        `yaml:"engine" json:"engine"`
	Headless bool          `yaml:"headless" json:"headless"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// Bin and ControlURL are only used by the rod driver.
	Bin        string `yaml:"bin" json:"bin,omitempty"`
	ControlURL string `yaml:"control_url" json:"control_url,omitempty"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Dir holds the per-run log files. Empty means ~/.formrunner/logs.
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log: "results.csv",
		Browser: BrowserConfig{
			Timeout: 10 * time.Second,
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: ".formrunner",
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// LoadConfig reads a YAML run configuration on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mapping == "" {
		return fmt.Errorf("mapping file is required")
	}
	if c.Input == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Log == "" {
		return fmt.Errorf("result log path is required")
	}

	if c.Start < 0 || c.End < 0 {
		return fmt.Errorf("start and end cannot be negative")
	}
	if c.End > 0 && c.End <= c.Start {
		return fmt.Errorf("end (%d) must be greater than start (%d)", c.End, c.Start)
	}

	switch c.Browser.Driver {
	case "", DriverPlaywright, DriverRod:
	default:
		return fmt.Errorf("invalid driver: %s (must be '%s' or '%s')", c.Browser.Driver, DriverPlaywright, DriverRod)
	}
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	switch c.Logging.Verbosity {
	case "":
		c.Logging.Verbosity = "normal"
	case "quiet", "normal", "verbose", "debug":
	default:
		return fmt.Errorf("invalid verbosity: %s", c.Logging.Verbosity)
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		c.Artifacts.OutputDir = ".formrunner"
	}
	return nil
}
