package engine

// run.go - Sequential, fail-fast execution of the ordered tables

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/ncl-analytics/sqlbuild/internal/extract"
	"github.com/ncl-analytics/sqlbuild/internal/state"
)

// Status is the outcome of one table in a run.
type Status string

// Execution statuses. Skipped means not attempted after an earlier failure.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

var (
	// ErrNoTables is returned when the project has no SQL files to run.
	ErrNoTables = errors.New("no SQL files found")
	// ErrExecutionFailed is returned when a table failed to execute.
	ErrExecutionFailed = errors.New("execution failed")
)

// ExecutionRecord is the outcome of one table.
type ExecutionRecord struct {
	Table    string
	Path     string
	Position int
	Status   Status
	Error    string
	Duration time.Duration
}

// RunOptions configures a run.
type RunOptions struct {
	// DryRun logs what would run without calling the executor.
	DryRun bool
	// Connection is the named connection profile passed to the executor.
	Connection string
	// TestTable restricts the run to this table and its dependencies.
	TestTable string
	// Target is the configured environment name, kept in run history.
	Target string
}

// RunSummary aggregates the records of a run.
type RunSummary struct {
	RunID      string
	DryRun     bool
	TestTable  string
	Connection string
	Records    []ExecutionRecord
	StartedAt  time.Time
	Duration   time.Duration
}

// Planned is the number of tables selected for the run.
func (s *RunSummary) Planned() int { return len(s.Records) }

// Attempted is the number of tables that were executed or dry-run.
func (s *RunSummary) Attempted() int { return s.Succeeded() + s.Failed() }

// Succeeded is the number of successful tables.
func (s *RunSummary) Succeeded() int { return s.count(StatusSuccess) }

// Failed is the number of failed tables.
func (s *RunSummary) Failed() int { return s.count(StatusFailed) }

// NotAttempted is the number of tables skipped after a failure.
func (s *RunSummary) NotAttempted() int { return s.count(StatusSkipped) }

// OK reports whether every planned table succeeded.
func (s *RunSummary) OK() bool { return s.Failed() == 0 && s.NotAttempted() == 0 }

// Failures returns the failed records.
func (s *RunSummary) Failures() []ExecutionRecord {
	var out []ExecutionRecord
	for _, r := range s.Records {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Executed returns the names of tables that were attempted, in order.
func (s *RunSummary) Executed() []string {
	var out []string
	for _, r := range s.Records {
		if r.Status != StatusSkipped {
			out = append(out, r.Table)
		}
	}
	return out
}

func (s *RunSummary) count(status Status) int {
	n := 0
	for _, r := range s.Records {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (s *RunSummary) counts() state.RunCounts {
	return state.RunCounts{
		Planned:   s.Planned(),
		Succeeded: s.Succeeded(),
		Failed:    s.Failed(),
		Skipped:   s.NotAttempted(),
	}
}

// Run builds the graph, orders it and executes every table in order.
// In a real run the first failure stops the loop and the remaining tables
// are recorded as skipped. A dry run never calls the executor.
//
// The summary is returned whenever execution started, including on failure.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	if opts.Connection == "" {
		opts.Connection = executor.DefaultConnection
	}
	if opts.TestTable != "" {
		opts.TestTable = extract.Normalize(opts.TestTable)
	}

	e.logger.Info("Building dependency graph...")
	if _, err := e.BuildGraph(ctx); err != nil {
		e.logger.Error("Failed to build dependency graph", "error", err)
		return nil, err
	}

	order, err := e.ExecutionOrder()
	if err != nil {
		e.logger.Error("Failed to determine execution order")
		return nil, err
	}
	if len(order) == 0 {
		e.logger.Error("Failed to determine execution order", "error", ErrNoTables)
		return nil, ErrNoTables
	}

	if opts.TestTable != "" {
		order, err = e.filterOrder(order, opts.TestTable)
		if err != nil {
			e.logger.Error(fmt.Sprintf("Test table %s not found in SQL files", opts.TestTable))
			return nil, err
		}
		e.logger.Info(fmt.Sprintf("Test mode: Will execute %s and its dependencies", opts.TestTable))
		e.logger.Info(fmt.Sprintf("Dependencies to execute: %s", strings.Join(order, ", ")))
	}

	summary := &RunSummary{
		RunID:      uuid.New().String(),
		DryRun:     opts.DryRun,
		TestTable:  opts.TestTable,
		Connection: opts.Connection,
		StartedAt:  time.Now(),
	}
	e.startRun(summary, opts)

	e.logger.Info(fmt.Sprintf("Found %d files to execute", len(order)))

	halted := ""
	for i, name := range order {
		table := e.tables[name]
		position := i + 1

		var rec ExecutionRecord
		switch {
		case halted != "":
			rec = ExecutionRecord{Table: name, Path: table.Path, Position: position, Status: StatusSkipped,
				Error: fmt.Sprintf("not attempted: %s failed", halted)}
		case ctx.Err() != nil:
			rec = ExecutionRecord{Table: name, Path: table.Path, Position: position, Status: StatusSkipped,
				Error: fmt.Sprintf("not attempted: %v", ctx.Err())}
		default:
			rec = e.executeTable(ctx, table, position, opts)
		}

		summary.Records = append(summary.Records, rec)
		e.recordExecution(summary.RunID, rec)

		if rec.Status == StatusFailed && !opts.DryRun && halted == "" {
			halted = name
			e.logger.Error(fmt.Sprintf("Stopping execution due to error in %s", name))
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	e.logSummary(summary)

	var runErr error
	if failures := summary.Failures(); len(failures) > 0 {
		runErr = fmt.Errorf("%w: %s: %s", ErrExecutionFailed, failures[0].Table, failures[0].Error)
	} else if summary.NotAttempted() > 0 {
		runErr = fmt.Errorf("%w: %v", ErrExecutionFailed, ctx.Err())
	}
	e.completeRun(summary, runErr)

	return summary, runErr
}

// executeTable runs one table and never returns an error; every failure
// becomes a failed record.
func (e *Engine) executeTable(ctx context.Context, table Table, position int, opts RunOptions) (rec ExecutionRecord) {
	rec = ExecutionRecord{Table: table.Name, Path: table.Path, Position: position}
	start := time.Now()

	fail := func(msg string) ExecutionRecord {
		rec.Status = StatusFailed
		rec.Error = msg
		rec.Duration = time.Since(start)
		e.logger.Error(fmt.Sprintf("Error executing %s: %s", table.Name, msg))
		return rec
	}

	if opts.DryRun {
		e.logger.Info(fmt.Sprintf("[DRY RUN] Would execute %s from %s", table.Name, table.Path))
		rec.Status = StatusSuccess
		return rec
	}

	e.logger.Info(fmt.Sprintf("Executing %s from %s", table.Name, table.Path))

	content, err := os.ReadFile(filepath.Join(e.projectDir, table.Path))
	if err != nil {
		return fail(fmt.Sprintf("failed to read SQL file: %v", err))
	}
	if strings.TrimSpace(string(content)) == "" {
		return fail("SQL file is empty")
	}
	if e.executor == nil {
		return fail("no executor configured")
	}

	defer func() {
		if r := recover(); r != nil {
			rec = fail(fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	err = e.executor.Execute(ctx, executor.Request{
		Table:      table.Name,
		Path:       table.Path,
		SQL:        string(content),
		Connection: opts.Connection,
	})
	if err != nil {
		return fail(err.Error())
	}

	rec.Status = StatusSuccess
	rec.Duration = time.Since(start)
	e.logger.Info(fmt.Sprintf("Successfully executed %s", table.Name))
	return rec
}

func (e *Engine) logSummary(s *RunSummary) {
	e.logger.Info("Execution Summary:")
	e.logger.Info(fmt.Sprintf("Total planned: %d", s.Planned()))
	e.logger.Info(fmt.Sprintf("Attempted: %d", s.Attempted()))
	e.logger.Info(fmt.Sprintf("Successful: %d", s.Succeeded()))
	e.logger.Info(fmt.Sprintf("Failed: %d", s.Failed()))
	e.logger.Info(fmt.Sprintf("Not attempted: %d", s.NotAttempted()))

	if failures := s.Failures(); len(failures) > 0 {
		e.logger.Info("Failed executions:")
		for _, f := range failures {
			e.logger.Info(fmt.Sprintf("- %s: %s", f.Table, f.Error))
		}
	}
	if s.DryRun {
		e.logger.Info("This was a dry run - no files were actually executed")
	}
	if s.TestTable != "" {
		e.logger.Info(fmt.Sprintf("Test mode execution for %s completed", s.TestTable))
	}
}

// --- Run history. Store errors are logged and never fail the run. ---

func (e *Engine) startRun(s *RunSummary, opts RunOptions) {
	if e.store == nil {
		return
	}
	execName := ""
	if e.executor != nil {
		execName = e.executor.Name()
	}
	run, err := e.store.CreateRun(state.RunParams{
		Target:     opts.Target,
		Connection: opts.Connection,
		Executor:   execName,
		TestTable:  opts.TestTable,
		DryRun:     opts.DryRun,
	})
	if err != nil {
		e.logger.Warn("failed to record run", "error", err)
		return
	}
	s.RunID = run.ID
}

func (e *Engine) recordExecution(runID string, rec ExecutionRecord) {
	if e.store == nil {
		return
	}
	err := e.store.RecordExecution(&state.TableRun{
		RunID:      runID,
		Table:      rec.Table,
		Path:       rec.Path,
		Position:   rec.Position,
		Status:     string(rec.Status),
		Error:      rec.Error,
		DurationMS: rec.Duration.Milliseconds(),
	})
	if err != nil {
		e.logger.Warn("failed to record execution", "table", rec.Table, "error", err)
	}
}

func (e *Engine) completeRun(s *RunSummary, runErr error) {
	if e.store == nil {
		return
	}
	status, msg := state.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = state.RunStatusFailed, runErr.Error()
	}
	if err := e.store.CompleteRun(s.RunID, status, s.counts(), msg); err != nil {
		e.logger.Warn("failed to complete run", "run_id", s.RunID, "error", err)
	}
}
