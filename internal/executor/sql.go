package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

// SQLExecutor provides database/sql execution for driver-backed executors.
// The connection is opened on first use.
type SQLExecutor struct {
	DB     *sql.DB
	Driver string
	DSN    string
	Logger *slog.Logger

	// MaxOpenConns caps the pool when positive.
	MaxOpenConns int

	name string
	mu   sync.Mutex
}

// NewSQLExecutor creates an executor for a database/sql driver.
func NewSQLExecutor(name, driver, dsn string, logger *slog.Logger) *SQLExecutor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLExecutor{name: name, Driver: driver, DSN: dsn, Logger: logger}
}

// Name returns the registered executor type.
func (e *SQLExecutor) Name() string { return e.name }

// Connect opens and pings the database if it is not open yet.
func (e *SQLExecutor) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.DB != nil {
		return nil
	}

	e.Logger.Debug("opening database", slog.String("driver", e.Driver))

	db, err := sql.Open(e.Driver, e.DSN)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", e.name, err)
	}
	if e.MaxOpenConns > 0 {
		db.SetMaxOpenConns(e.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", e.name, err)
	}

	e.DB = db
	return nil
}

// Execute runs the whole file as a single ExecContext call.
func (e *SQLExecutor) Execute(ctx context.Context, req Request) error {
	if err := e.Connect(ctx); err != nil {
		return err
	}
	if _, err := e.DB.ExecContext(ctx, req.SQL); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (e *SQLExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.DB == nil {
		return nil
	}
	e.Logger.Debug("closing database connection")
	err := e.DB.Close()
	e.DB = nil
	return err
}
