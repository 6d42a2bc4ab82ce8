// Package state records build run history in SQLite.
// It tracks runs and the per-table execution records of each run.
package state

import "time"

// RunStatus represents the status of a run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the build orchestrator.
type Run struct {
	ID          string
	Target      string
	Connection  string
	Executor    string
	TestTable   string
	DryRun      bool
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Counts      RunCounts
}

// RunCounts summarises the outcome of a run.
type RunCounts struct {
	Planned   int
	Succeeded int
	Failed    int
	Skipped   int
}

// RunParams holds the fields captured when a run starts.
type RunParams struct {
	Target     string
	Connection string
	Executor   string
	TestTable  string
	DryRun     bool
}

// TableRun is the stored execution record of one table within a run.
type TableRun struct {
	ID         string
	RunID      string
	Table      string
	Path       string
	Position   int
	Status     string
	Error      string
	DurationMS int64
	RecordedAt time.Time
}

// Store persists run history.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(params RunParams) (*Run, error)
	RecordExecution(rec *TableRun) error
	CompleteRun(id string, status RunStatus, counts RunCounts, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	GetExecutionRecords(runID string) ([]*TableRun, error)
}
