package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/formrunner/pkg/runlog"
)

// Level is the console verbosity.
type Level int

const (
	// LevelQuiet shows only warnings, errors and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows one line per row (default)
	LevelNormal
	// LevelVerbose adds failure reasons and setup details
	LevelVerbose
	// LevelDebug shows everything
	LevelDebug
)

// ParseLevel converts a verbosity name to a Level. Unknown names are normal.
func ParseLevel(name string) Level {
	switch name {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("217"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
)

// Console prints run progress for a human.
type Console struct {
	level Level
	w     io.Writer
}

// NewConsole creates a console writing to stdout.
func NewConsole(level Level) *Console {
	return &Console{level: level, w: os.Stdout}
}

// NewConsoleWriter creates a console writing to w.
func NewConsoleWriter(level Level, w io.Writer) *Console {
	return &Console{level: level, w: w}
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	if c.level >= LevelNormal {
		rule := strings.Repeat("=", 60)
		fmt.Fprintf(c.w, "\n%s\n%s\n%s\n", headerStyle.Render(rule), headerStyle.Render("  "+message), headerStyle.Render(rule))
	}
}

// Infof prints an informational message
func (c *Console) Infof(format string, args ...interface{}) {
	if c.level >= LevelNormal {
		fmt.Fprintln(c.w, infoStyle.Render(fmt.Sprintf(format, args...)))
	}
}

// Successf prints a success message with checkmark
func (c *Console) Successf(format string, args ...interface{}) {
	if c.level >= LevelNormal {
		fmt.Fprintln(c.w, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
	}
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...interface{}) {
	fmt.Fprintln(c.w, warnStyle.Render("⚠ Warning: "+fmt.Sprintf(format, args...)))
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...interface{}) {
	fmt.Fprintln(c.w, errorStyle.Render("✗ Error: "+fmt.Sprintf(format, args...)))
}

// Verbosef prints detailed information (only in verbose mode)
func (c *Console) Verbosef(format string, args ...interface{}) {
	if c.level >= LevelVerbose {
		fmt.Fprintln(c.w, mutedStyle.Render("→ "+fmt.Sprintf(format, args...)))
	}
}

// Debugf prints debug information (only in debug mode)
func (c *Console) Debugf(format string, args ...interface{}) {
	if c.level >= LevelDebug {
		fmt.Fprintln(c.w, mutedStyle.Render("[DEBUG] "+fmt.Sprintf(format, args...)))
	}
}

// Row prints the outcome of one row.
func (c *Console) Row(r runlog.Result) {
	if c.level < LevelNormal {
		return
	}

	var line string
	switch r.Status {
	case runlog.StatusSuccess:
		line = successStyle.Render(fmt.Sprintf("  ✓ row %d", r.Row))
	case runlog.StatusSkipped:
		line = skipStyle.Render(fmt.Sprintf("  ↷ row %d skipped", r.Row))
	default:
		line = errorStyle.Render(fmt.Sprintf("  ✗ row %d %s", r.Row, r.Status))
	}
	if reason := r.Reason(); reason != "" && (r.Status.Failed() || c.level >= LevelVerbose) {
		line += " " + mutedStyle.Render(reason)
	}
	fmt.Fprintln(c.w, line)
}

// Summary prints the final counts. It is shown at every level.
func (c *Console) Summary(s *RunSummary) {
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, headerStyle.Render(s.DoneLine()))
	if c.level >= LevelNormal {
		fmt.Fprintln(c.w, mutedStyle.Render(fmt.Sprintf("  Run: %s  Duration: %s", s.RunID, s.Duration.Round(time.Millisecond))))
		if s.Counts.ValidationFailed > 0 || s.Counts.ActuationFailed > 0 {
			fmt.Fprintln(c.w, mutedStyle.Render(fmt.Sprintf("  Validation failed: %d  Actuation failed: %d",
				s.Counts.ValidationFailed, s.Counts.ActuationFailed)))
		}
	}
	if s.Error != "" {
		fmt.Fprintln(c.w, errorStyle.Render("  "+s.Error))
	}
}
