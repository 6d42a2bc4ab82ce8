package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordExecution stores the execution record of one table.
// ID and RecordedAt are filled in when empty.
func (s *SQLiteStore) RecordExecution(rec *TableRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if rec.ID == "" {
		rec.ID = generateID()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	var errVal sql.NullString
	if rec.Error != "" {
		errVal = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO execution_records (id, run_id, table_name, path, position, status, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Table, rec.Path, rec.Position, rec.Status, errVal, rec.DurationMS,
		formatTime(rec.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution of %s: %w", rec.Table, err)
	}
	return nil
}

// GetExecutionRecords returns the records of a run in execution order.
func (s *SQLiteStore) GetExecutionRecords(runID string) ([]*TableRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, table_name, path, position, status, error, duration_ms, recorded_at
		 FROM execution_records WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*TableRun
	for rows.Next() {
		rec := &TableRun{}
		var errMsg sql.NullString
		var recordedAt string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Table, &rec.Path, &rec.Position, &rec.Status,
			&errMsg, &rec.DurationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		rec.RecordedAt = parseTime(recordedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}
	return records, nil
}
