// Package logging writes the per-run diagnostic log of formrunner.
//
// Every run gets its own file, <run-id>-formrunner.log, in the log directory
// (~/.formrunner/logs by default). Components share the file and are told
// apart by a bracketed tag:
//
//	[2024-05-01 12:00:00.000] [runner] [INFO] loaded 120 records from people.csv
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes leveled lines for one component of a run.
//
// All log methods write unconditionally; verbosity filtering happens on the
// console, never in the file.
type Logger struct {
	runID     string
	component string
	logPath   string
	out       *sink
}

// sink is the file shared by every component logger of a run.
type sink struct {
	mu        sync.Mutex
	file      *os.File
	logger    *log.Logger
	closeOnce sync.Once
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// DefaultDir returns ~/.formrunner/logs.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".formrunner", "logs"), nil
}

// New opens the log file for runID in dir and returns a logger for
// component. An empty dir selects DefaultDir.
//
// If the directory cannot be created or the file cannot be opened, New
// returns a logger that writes to stderr together with the error, so callers
// can warn and carry on.
func New(dir, runID, component string) (*Logger, error) {
	if runID == "" {
		runID = NewRunID()
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return newFallback(runID, component, err), err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		err = fmt.Errorf("failed to create log directory: %w", err)
		return newFallback(runID, component, err), err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-formrunner.log", runID))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallback(runID, component, err), err
	}

	return &Logger{
		runID:     runID,
		component: component,
		logPath:   logPath,
		out: &sink{
			file:   file,
			logger: log.New(file, "", 0),
		},
	}, nil
}

func newFallback(runID, component string, cause error) *Logger {
	logger := log.New(os.Stderr, "", 0)
	l := &Logger{
		runID:     runID,
		component: component,
		out:       &sink{logger: logger},
	}
	l.Warnf("file logging unavailable, using stderr: %v", cause)
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{component: "discard", out: &sink{logger: log.New(io.Discard, "", 0)}}
}

// With returns a logger for another component writing to the same file.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: component,
		logPath:   l.logPath,
		out:       l.out,
	}
}

func (l *Logger) write(level, format string, v ...interface{}) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	entry := fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, fmt.Sprintf(format, v...))

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.logger.Println(entry)
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.write("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.write("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.write("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.write("ERROR", format, v...) }

// RunID returns the run identifier the log belongs to.
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path of the log file, empty in fallback mode.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the shared log file. Safe to call multiple times and from any
// component logger of the run.
func (l *Logger) Close() error {
	var err error
	l.out.closeOnce.Do(func() {
		if l.out.file != nil {
			err = l.out.file.Close()
		}
	})
	return err
}
