package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	require.NoError(t, store.Open(":memory:"))
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun(RunParams{})
	assert.Error(t, err)
	assert.Error(t, store.InitSchema())
	assert.Error(t, store.RecordExecution(&TableRun{}))
	_, err = store.ListRuns(5)
	assert.Error(t, err)
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "execution_records"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if assert.NoError(t, err, "table %s should exist", table) {
			_ = rows.Close()
		}
	}

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running migrations is a no-op.
	assert.NoError(t, store.InitSchema())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun(RunParams{
		Target:     "uat",
		Connection: "data_lab_olids_uat",
		Executor:   "snow",
		TestTable:  "C",
		DryRun:     true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "uat", got.Target)
	assert.Equal(t, "data_lab_olids_uat", got.Connection)
	assert.Equal(t, "C", got.TestTable)
	assert.True(t, got.DryRun)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.StartedAt.IsZero())

	counts := RunCounts{Planned: 3, Succeeded: 1, Failed: 1, Skipped: 1}
	require.NoError(t, store.CompleteRun(run.ID, RunStatusFailed, counts, "B failed"))

	got, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "B failed", got.Error)
	assert.Equal(t, counts, got.Counts)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	err = store.CompleteRun("missing", RunStatusCompleted, RunCounts{}, "")
	assert.Error(t, err)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.CreateRun(RunParams{Connection: "c"})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	for _, r := range runs {
		assert.Contains(t, ids, r.ID)
	}
}

func TestSQLiteStore_ExecutionRecords(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun(RunParams{})
	require.NoError(t, err)

	records := []*TableRun{
		{RunID: run.ID, Table: "B", Path: "models/B.sql", Position: 2, Status: "failed", Error: "boom", DurationMS: 12},
		{RunID: run.ID, Table: "A", Path: "models/A.sql", Position: 1, Status: "success", DurationMS: 5},
		{RunID: run.ID, Table: "C", Path: "models/C.sql", Position: 3, Status: "skipped"},
	}
	for _, rec := range records {
		require.NoError(t, store.RecordExecution(rec))
		assert.NotEmpty(t, rec.ID)
	}

	got, err := store.GetExecutionRecords(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Table)
	assert.Equal(t, "B", got[1].Table)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, int64(12), got[1].DurationMS)
	assert.Equal(t, "C", got[2].Table)
	assert.Empty(t, got[2].Error)

	none, err := store.GetExecutionRecords("other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_RecordExecution_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordExecution(&TableRun{RunID: "nope", Table: "A", Position: 1, Status: "success"})
	assert.Error(t, err, "foreign key should reject records for unknown runs")
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())
	run, err := store.CreateRun(RunParams{Connection: "c"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.InitSchema())

	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestOpenSQLite_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".sqlbuild", "state.db")

	store, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}
