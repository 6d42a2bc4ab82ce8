package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

func init() {
	Register("snow", func(cfg Config) (Executor, error) { return NewSnowExecutor(cfg), nil })
}

// SnowExecutor runs SQL through the Snowflake CLI:
//
//	snow sql --connection <name> --filename <scratch file> --silent
//
// The SQL is copied to a scratch file under TempDir for the duration of the
// call.
type SnowExecutor struct {
	path    string
	tempDir string
	logger  *slog.Logger
}

// NewSnowExecutor creates a Snowflake CLI executor.
func NewSnowExecutor(cfg Config) *SnowExecutor {
	path := cfg.SnowPath
	if path == "" {
		path = DefaultSnowPath
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = DefaultTempDir
	}
	return &SnowExecutor{path: path, tempDir: tempDir, logger: cfg.logger()}
}

// Name returns "snow".
func (s *SnowExecutor) Name() string { return "snow" }

// Close is a no-op.
func (s *SnowExecutor) Close() error { return nil }

// Execute writes the scratch file, runs the CLI and removes the file again.
func (s *SnowExecutor) Execute(ctx context.Context, req Request) error {
	if err := os.MkdirAll(s.tempDir, 0o750); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	scratch := ScratchPath(s.tempDir, req.Table)
	if err := os.WriteFile(scratch, []byte(req.SQL), 0o600); err != nil {
		return fmt.Errorf("failed to write scratch file: %w", err)
	}
	defer func() {
		if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove scratch file", "path", scratch, "error", err)
		}
	}()

	args := []string{"sql", "--connection", req.Connection, "--filename", scratch, "--silent"}
	s.logger.Debug("running snow", "table", req.Table, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, s.path, args...) //nolint:gosec // binary comes from config
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of a killed CLI can hold the output pipes open.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		return &CommandError{
			Command: s.path,
			Stderr:  strings.TrimSpace(stderr.String()),
			Stdout:  strings.TrimSpace(stdout.String()),
			Err:     err,
		}
	}
	return nil
}

// ScratchPath returns the scratch file used for table.
func ScratchPath(tempDir, table string) string {
	return filepath.Join(tempDir, table+"_temp.sql")
}

// CommandError reports a failed CLI invocation.
type CommandError struct {
	Command string
	Stderr  string
	Stdout  string
	Err     error
}

// Error prefers the captured stderr, then stdout, then the exit error.
func (e *CommandError) Error() string {
	switch {
	case e.Stderr != "":
		return e.Stderr
	case e.Stdout != "":
		return e.Stdout
	default:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
}

func (e *CommandError) Unwrap() error { return e.Err }
