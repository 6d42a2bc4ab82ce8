package output

import "time"

// PlanEntry is one table in an execution plan.
type PlanEntry struct {
	Position     int      `json:"position" yaml:"position"`
	Table        string   `json:"table" yaml:"table"`
	Path         string   `json:"path" yaml:"path"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
}

// PlanOutput is the execution plan of a project.
type PlanOutput struct {
	Tables     []PlanEntry `json:"tables" yaml:"tables"`
	TotalEdges int         `json:"total_dependencies" yaml:"total_dependencies"`
}

// DependenciesOutput lists the dependencies of one table.
type DependenciesOutput struct {
	Table        string   `json:"table" yaml:"table"`
	Path         string   `json:"path" yaml:"path"`
	Direct       []string `json:"direct" yaml:"direct"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
}

// CycleOutput describes one dependency cycle.
type CycleOutput struct {
	Tables       []string            `json:"tables" yaml:"tables"`
	Dependencies map[string][]string `json:"dependencies" yaml:"dependencies"`
}

// CyclesOutput is written when no order exists.
type CyclesOutput struct {
	Error     string        `json:"error" yaml:"error"`
	Cycles    []CycleOutput `json:"cycles" yaml:"cycles"`
	Tables    []string      `json:"tables" yaml:"tables"`
	Truncated bool          `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// DAGNode is a table within a level.
type DAGNode struct {
	Table     string   `json:"table" yaml:"table"`
	DependsOn []string `json:"depends_on" yaml:"depends_on"`
	UsedBy    []string `json:"used_by" yaml:"used_by"`
}

// DAGLevel groups tables at the same depth.
type DAGLevel struct {
	Level  int       `json:"level" yaml:"level"`
	Tables []DAGNode `json:"tables" yaml:"tables"`
}

// DAGOutput is the leveled dependency graph.
type DAGOutput struct {
	Levels      []DAGLevel `json:"levels" yaml:"levels"`
	TotalTables int        `json:"total_tables" yaml:"total_tables"`
	TotalEdges  int        `json:"total_dependencies" yaml:"total_dependencies"`
}

// RecordOutput is one executed table.
type RecordOutput struct {
	Position   int    `json:"position" yaml:"position"`
	Table      string `json:"table" yaml:"table"`
	Path       string `json:"path" yaml:"path"`
	Status     string `json:"status" yaml:"status"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
}

// RunOutput summarises a run.
type RunOutput struct {
	RunID        string         `json:"run_id" yaml:"run_id"`
	Status       string         `json:"status" yaml:"status"`
	DryRun       bool           `json:"dry_run" yaml:"dry_run"`
	TestTable    string         `json:"test_table,omitempty" yaml:"test_table,omitempty"`
	Connection   string         `json:"connection" yaml:"connection"`
	Planned      int            `json:"planned" yaml:"planned"`
	Attempted    int            `json:"attempted" yaml:"attempted"`
	Succeeded    int            `json:"succeeded" yaml:"succeeded"`
	Failed       int            `json:"failed" yaml:"failed"`
	NotAttempted int            `json:"not_attempted" yaml:"not_attempted"`
	DurationMS   int64          `json:"duration_ms" yaml:"duration_ms"`
	LogFile      string         `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Records      []RecordOutput `json:"records" yaml:"records"`
}

// HistoryRun is one row of run history.
type HistoryRun struct {
	ID          string     `json:"id" yaml:"id"`
	Status      string     `json:"status" yaml:"status"`
	Target      string     `json:"target,omitempty" yaml:"target,omitempty"`
	Connection  string     `json:"connection" yaml:"connection"`
	Executor    string     `json:"executor" yaml:"executor"`
	TestTable   string     `json:"test_table,omitempty" yaml:"test_table,omitempty"`
	DryRun      bool       `json:"dry_run" yaml:"dry_run"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Planned     int        `json:"planned" yaml:"planned"`
	Succeeded   int        `json:"succeeded" yaml:"succeeded"`
	Failed      int        `json:"failed" yaml:"failed"`
	Skipped     int        `json:"skipped" yaml:"skipped"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// HistoryOutput lists runs, or one run with its records.
type HistoryOutput struct {
	Runs    []HistoryRun   `json:"runs" yaml:"runs"`
	Records []RecordOutput `json:"records,omitempty" yaml:"records,omitempty"`
}
