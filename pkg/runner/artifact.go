package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/formrunner/pkg/engine"
	"github.com/entrhq/formrunner/pkg/runlog"
)

// Run statuses.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// RunSummary describes one run for the console and the artifacts.
type RunSummary struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Mapping   string          `json:"mapping"`
	Input     string          `json:"input"`
	Log       string          `json:"log"`
	DryRun    bool            `json:"dry_run"`
	Resume    bool            `json:"resume"`
	Driver    string          `json:"driver,omitempty"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Records   int             `json:"records"`
	Counts    engine.Summary  `json:"counts"`
	Results   []runlog.Result `json:"results"`
}

// Failed is the number of rows that failed validation or actuation.
func (s *RunSummary) Failed() int {
	return s.Counts.Failed()
}

// DoneLine is the one-line final count.
func (s *RunSummary) DoneLine() string {
	return fmt.Sprintf("Done. Success: %d, Failed: %d, Skipped: %d", s.Counts.Succeeded, s.Failed(), s.Counts.Skipped)
}

// ArtifactWriter handles writing run artifacts
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir}
}

// Dir returns the directory artifacts are written to.
func (w *ArtifactWriter) Dir() string {
	return w.outputDir
}

// WriteAll writes run.json and summary.md.
func (w *ArtifactWriter) WriteAll(summary *RunSummary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := w.WriteRunJSON(summary); err != nil {
		return err
	}
	return w.WriteSummaryMarkdown(summary)
}

// WriteRunJSON writes the full run summary as JSON
func (w *ArtifactWriter) WriteRunJSON(summary *RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.outputDir, "run.json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write run JSON: %w", err)
	}
	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *RunSummary) error {
	var md strings.Builder

	md.WriteString("# Form Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Mapping:** `%s`\n\n", summary.Mapping))
	md.WriteString(fmt.Sprintf("**Input:** `%s` (%d records)\n\n", summary.Input, summary.Records))
	md.WriteString(fmt.Sprintf("**Result log:** `%s`\n\n", summary.Log))
	if summary.DryRun {
		md.WriteString("**Mode:** dry run\n\n")
	}
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Millisecond)))

	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	}

	md.WriteString("## Counts\n\n")
	md.WriteString(fmt.Sprintf("- **Succeeded:** %d\n", summary.Counts.Succeeded))
	md.WriteString(fmt.Sprintf("- **Validation failed:** %d\n", summary.Counts.ValidationFailed))
	md.WriteString(fmt.Sprintf("- **Actuation failed:** %d\n", summary.Counts.ActuationFailed))
	md.WriteString(fmt.Sprintf("- **Skipped:** %d\n\n", summary.Counts.Skipped))

	var failures []runlog.Result
	for _, r := range summary.Results {
		if r.Status.Failed() {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		md.WriteString("## Failures\n\n")
		md.WriteString("| Row | Status | Reasons |\n|---|---|---|\n")
		for _, r := range failures {
			md.WriteString(fmt.Sprintf("| %d | %s | %s |\n", r.Row, r.Status, strings.ReplaceAll(r.Reason(), "|", "\\|")))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(filepath.Join(w.outputDir, "summary.md"), []byte(md.String()), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return nil
}
