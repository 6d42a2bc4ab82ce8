package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/ncl-analytics/sqlbuild/internal/state"
	"github.com/ncl-analytics/sqlbuild/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExecutesInOrder(t *testing.T) {
	exec := newFakeExecutor()
	eng := newTestEngine(t, chainProject, exec)

	summary, err := eng.Run(t.Context(), RunOptions{})
	require.NoError(t, err)

	assert.True(t, summary.OK())
	assert.Equal(t, []string{"A", "B", "C", "D"}, exec.tables())
	assert.Equal(t, 4, summary.Planned())
	assert.Equal(t, 4, summary.Succeeded())
	assert.Equal(t, 0, summary.Failed())
	assert.NotEmpty(t, summary.RunID)

	for i, rec := range summary.Records {
		assert.Equal(t, i+1, rec.Position)
		assert.Equal(t, StatusSuccess, rec.Status)
	}

	req := exec.requests[1]
	assert.Equal(t, "B", req.Table)
	assert.Equal(t, "SELECT * FROM A", req.SQL)
	assert.Equal(t, executor.DefaultConnection, req.Connection)
}

func TestRun_DryRun(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	exec := newFakeExecutor()
	root := testutil.WriteProject(t, map[string]string{
		"A.sql": "SELECT 1 AS id",
		"B.sql": "SELECT * FROM A",
		"C.sql": "SELECT * FROM B JOIN A ON B.id = A.id",
	})
	eng, err := New(Config{ProjectDir: root, Executor: exec, Logger: logger})
	require.NoError(t, err)
	defer eng.Close()

	summary, err := eng.Run(t.Context(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, exec.tables(), "dry run must not call the executor")
	assert.True(t, summary.OK())
	assert.Equal(t, 3, summary.Succeeded())

	out := logs.String()
	for _, name := range []string{"A", "B", "C"} {
		assert.Contains(t, out, "[DRY RUN] Would execute "+name+" from "+name+".sql")
	}
	assert.Contains(t, out, "This was a dry run")
}

func TestRun_DryRunNeedsNoExecutor(t *testing.T) {
	eng := newTestEngine(t, chainProject, nil)

	summary, err := eng.Run(t.Context(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Succeeded())
}

func TestRun_TestTable(t *testing.T) {
	exec := newFakeExecutor()
	eng := newTestEngine(t, chainProject, exec)

	summary, err := eng.Run(t.Context(), RunOptions{TestTable: "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, exec.tables())
	assert.Equal(t, "C", summary.TestTable)
	assert.Equal(t, 3, summary.Planned())
}

func TestRun_UnknownTestTable(t *testing.T) {
	exec := newFakeExecutor()
	eng := newTestEngine(t, chainProject, exec)

	summary, err := eng.Run(t.Context(), RunOptions{TestTable: "missing"})
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Nil(t, summary)
	assert.Empty(t, exec.tables())
}

func TestRun_FailFast(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["B"] = errBoom
	eng := newTestEngine(t, map[string]string{
		"A.sql": "SELECT 1 AS id",
		"B.sql": "SELECT * FROM A",
		"C.sql": "SELECT * FROM B",
	}, exec)

	summary, err := eng.Run(t.Context(), RunOptions{})
	require.ErrorIs(t, err, ErrExecutionFailed)
	require.NotNil(t, summary)

	assert.Equal(t, []string{"A", "B"}, exec.tables(), "C must never be attempted")
	assert.Equal(t, 1, summary.Succeeded())
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, 1, summary.NotAttempted())
	assert.Equal(t, 2, summary.Attempted())
	assert.Equal(t, []string{"A", "B"}, summary.Executed())

	failures := summary.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "B", failures[0].Table)
	assert.Equal(t, errBoom.Error(), failures[0].Error)

	assert.Equal(t, StatusSkipped, summary.Records[2].Status)
	assert.Contains(t, summary.Records[2].Error, "B failed")
	assert.Contains(t, err.Error(), "B")
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.panics["A"] = true
	eng := newTestEngine(t, map[string]string{
		"A.sql": "SELECT 1",
		"B.sql": "SELECT * FROM A",
	}, exec)

	summary, err := eng.Run(t.Context(), RunOptions{})
	require.ErrorIs(t, err, ErrExecutionFailed)
	assert.Equal(t, StatusFailed, summary.Records[0].Status)
	assert.Contains(t, summary.Records[0].Error, "executor exploded")
	assert.Equal(t, StatusSkipped, summary.Records[1].Status)
}

func TestRun_EmptyFile(t *testing.T) {
	exec := newFakeExecutor()
	eng := newTestEngine(t, map[string]string{
		"A.sql": "  \n\t",
	}, exec)

	summary, err := eng.Run(t.Context(), RunOptions{})
	require.Error(t, err)
	assert.Empty(t, exec.tables())
	assert.Equal(t, "SQL file is empty", summary.Records[0].Error)
}

func TestRun_NoExecutor(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"A.sql": "SELECT 1"}, nil)

	summary, err := eng.Run(t.Context(), RunOptions{})
	require.Error(t, err)
	assert.Equal(t, "no executor configured", summary.Records[0].Error)
}

func TestRun_Cycle(t *testing.T) {
	exec := newFakeExecutor()
	eng := newTestEngine(t, map[string]string{
		"X.sql": "SELECT * FROM Y",
		"Y.sql": "SELECT * FROM X",
	}, exec)

	summary, err := eng.Run(t.Context(), RunOptions{})
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Nil(t, summary)
	assert.Empty(t, exec.tables())
}

func TestRun_NoTables(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"README.md": "nothing here"}, newFakeExecutor())

	_, err := eng.Run(t.Context(), RunOptions{})
	assert.ErrorIs(t, err, ErrNoTables)
}

type cancellingExecutor struct {
	*fakeExecutor
	cancel context.CancelFunc
}

func (c *cancellingExecutor) Execute(ctx context.Context, req executor.Request) error {
	err := c.fakeExecutor.Execute(ctx, req)
	c.cancel()
	return err
}

func TestRun_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	exec := &cancellingExecutor{fakeExecutor: newFakeExecutor(), cancel: cancel}
	eng := newTestEngine(t, chainProject, exec)

	summary, err := eng.Run(ctx, RunOptions{})
	require.ErrorIs(t, err, ErrExecutionFailed)
	assert.True(t, errors.Is(err, ErrExecutionFailed))

	assert.Equal(t, []string{"A"}, exec.tables())
	assert.Equal(t, 1, summary.Succeeded())
	assert.Equal(t, 3, summary.NotAttempted())
}

func TestRun_RecordsHistory(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["B"] = errBoom
	root := testutil.WriteProject(t, map[string]string{
		"A.sql": "SELECT 1 AS id",
		"B.sql": "SELECT * FROM A",
		"C.sql": "SELECT * FROM B",
	})
	eng, err := New(Config{
		ProjectDir: root,
		Executor:   exec,
		StatePath:  ":memory:",
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	defer eng.Close()

	summary, err := eng.Run(t.Context(), RunOptions{Connection: "dev", Target: "local"})
	require.Error(t, err)

	store := eng.GetStateStore()
	require.NotNil(t, store)

	run, err := store.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Equal(t, "dev", run.Connection)
	assert.Equal(t, "local", run.Target)
	assert.Equal(t, "fake", run.Executor)
	assert.Equal(t, state.RunCounts{Planned: 3, Succeeded: 1, Failed: 1, Skipped: 1}, run.Counts)
	assert.NotNil(t, run.CompletedAt)

	records, err := store.GetExecutionRecords(summary.RunID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	statuses := make([]string, 0, len(records))
	for _, r := range records {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, "success,failed,skipped", strings.Join(statuses, ","))
}

func TestEngine_Close(t *testing.T) {
	exec := newFakeExecutor()
	root := testutil.WriteProject(t, map[string]string{"A.sql": "SELECT 1"})
	eng, err := New(Config{ProjectDir: root, Executor: exec, StatePath: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, eng.Close())
	assert.True(t, exec.closed)
}

func TestNew_RequiresProjectDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
