// Package executor runs the SQL of one table against an external engine.
//
// The orchestrator only needs a way to submit a file of SQL for a named
// connection and learn whether it succeeded. Implementations shell out to
// the Snowflake CLI or talk to a database/sql driver directly.
package executor

import (
	"context"
	"log/slog"
	"time"
)

// Request describes one table to execute.
type Request struct {
	// Table is the upper-cased table name.
	Table string
	// Path is the SQL file path, relative to the project root.
	Path string
	// SQL is the full file content.
	SQL string
	// Connection is the named connection profile to execute against.
	Connection string
}

// Executor executes SQL for a table.
type Executor interface {
	// Execute runs req.SQL. A non-nil error marks the table as failed.
	Execute(ctx context.Context, req Request) error

	// Name returns the registered executor type.
	Name() string

	// Close releases held resources.
	Close() error
}

// Config holds executor settings.
type Config struct {
	// Type selects the registered executor (snow, duckdb, postgres, sqlite).
	Type string

	// DSN is the data source name for database/sql executors.
	DSN string

	// SnowPath is the Snowflake CLI binary.
	SnowPath string

	// TempDir receives the scratch files handed to the CLI.
	TempDir string

	// Timeout bounds a single Execute call. Zero means no limit.
	Timeout time.Duration

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Default values.
const (
	DefaultType       = "snow"
	DefaultSnowPath   = "snow"
	DefaultTempDir    = "temp"
	DefaultConnection = "data_lab_olids_uat"
)

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// WithTimeout wraps an executor so that each call is bounded by timeout.
// A zero timeout returns exec unchanged.
func WithTimeout(exec Executor, timeout time.Duration) Executor {
	if timeout <= 0 {
		return exec
	}
	return &timeoutExecutor{Executor: exec, timeout: timeout}
}

type timeoutExecutor struct {
	Executor
	timeout time.Duration
}

func (t *timeoutExecutor) Execute(ctx context.Context, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Executor.Execute(ctx, req)
}
