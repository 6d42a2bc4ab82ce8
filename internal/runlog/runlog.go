// Package runlog sets up the per-run execution log.
//
// Each run deletes the previous sql_execution_*.log files and writes a fresh
// sql_execution_latest.log. Records go to that file and to the console.
package runlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LatestName is the file name of the current run's log.
const LatestName = "sql_execution_latest.log"

// Sink is an open execution log.
type Sink struct {
	Logger *slog.Logger
	Path   string

	file *os.File
}

// Open prepares dir, removes old execution logs and opens a new one.
// Records at or above level are written to both the file and console.
// A nil console logs to the file only.
func Open(dir string, console io.Writer, level slog.Leveler) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	old, err := filepath.Glob(filepath.Join(dir, "sql_execution_*.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to list old logs: %w", err)
	}
	var warnings []string
	for _, path := range old {
		if err := os.Remove(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not delete old log file %s: %v", path, err))
		}
	}

	path := filepath.Join(dir, LatestName)
	f, err := os.Create(path) //nolint:gosec // path is built from the configured log dir
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	var w io.Writer = f
	if console != nil {
		w = io.MultiWriter(f, console)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	for _, msg := range warnings {
		logger.Warn(msg)
	}
	logger.Info("Starting new execution log")

	return &Sink{Logger: logger, Path: path, file: f}, nil
}

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
