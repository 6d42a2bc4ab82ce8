package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const runColumns = `id, target, connection, executor, test_table, dry_run, status,
	started_at, completed_at, error, planned, succeeded, failed, skipped`

// CreateRun creates a new run in the running state.
func (s *SQLiteStore) CreateRun(params RunParams) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:         generateID(),
		Target:     params.Target,
		Connection: params.Connection,
		Executor:   params.Executor,
		TestTable:  params.TestTable,
		DryRun:     params.DryRun,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("target", run.Target))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, target, connection, executor, test_table, dry_run, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Target, run.Connection, run.Executor, run.TestTable, run.DryRun,
		string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as finished with the given status and counts.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, counts RunCounts, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ?,
		 planned = ?, succeeded = ?, failed = ?, skipped = ?
		 WHERE id = ?`,
		string(status), formatTime(time.Now()), errVal,
		counts.Planned, counts.Succeeded, counts.Failed, counts.Skipped, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var status, startedAt string
	var completedAt, errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Target, &run.Connection, &run.Executor, &run.TestTable, &run.DryRun,
		&status, &startedAt, &completedAt, &errMsg,
		&run.Counts.Planned, &run.Counts.Succeeded, &run.Counts.Failed, &run.Counts.Skipped)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}
