package commands

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ncl-analytics/sqlbuild/internal/cli/config"
	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/engine"
	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project, its dependency graph and the executor",
		Long: `Check that sqlbuild can run this project:

- configuration file and SQL files are found
- every SQL file is readable
- the dependency graph has no cycles
- the configured executor exists (and the snow CLI is on PATH)

Tables with neither dependencies nor dependents are listed as a hint: their
references may not be detected by the heuristic.

Exits non-zero when any check fails.`,
		Example: `  sqlbuild doctor
  sqlbuild doctor --target prod -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the structured output of the doctor command.
type DoctorOutput struct {
	Summary      ProjectSummary `json:"summary" yaml:"summary"`
	HealthChecks []HealthCheck  `json:"health_checks" yaml:"health_checks"`
	IssueCount   int            `json:"issue_count" yaml:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Tables    int `json:"tables" yaml:"tables"`
	EdgeCount int `json:"dependencies" yaml:"dependencies"`
	DAGDepth  int `json:"dag_depth" yaml:"dag_depth"`
	RootCount int `json:"root_count" yaml:"root_count"`
	LeafCount int `json:"leaf_count" yaml:"leaf_count"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Group   string   `json:"group" yaml:"group"`
	Status  string   `json:"status" yaml:"status"` // "pass", "warn", "error"
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := buildDoctorOutput(cmdCtx.Engine, cmdCtx.Cfg, cmd)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if handled, err := r.Structured(out); handled {
		if err != nil {
			return err
		}
	} else {
		renderDoctor(r, out)
	}

	for _, c := range out.HealthChecks {
		if c.Status == "error" {
			return fmt.Errorf("doctor found %d problem(s)", out.IssueCount)
		}
	}
	return nil
}

func buildDoctorOutput(eng *engine.Engine, cfg *config.Config, cmd *cobra.Command) (*DoctorOutput, error) {
	out := &DoctorOutput{}

	configCheck := HealthCheck{ID: "CF01", Name: "Configuration file", Group: "project", Status: "pass"}
	if cfg.File == "" {
		configCheck.Status = "warn"
		configCheck.Details = []string{"no " + config.DefaultConfigName + " found, using defaults (run sqlbuild init)"}
	} else {
		configCheck.Details = []string{cfg.File}
	}
	out.HealthChecks = append(out.HealthChecks, configCheck)

	result, err := eng.BuildGraph(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	graph := eng.GetGraph()

	filesCheck := HealthCheck{ID: "PJ01", Name: "SQL files found", Group: "project", Status: "pass"}
	if result.TablesTotal == 0 {
		filesCheck.Status = "error"
		filesCheck.Details = []string{"no .sql files under " + eng.ProjectDir()}
	}
	out.HealthChecks = append(out.HealthChecks, filesCheck)

	readCheck := HealthCheck{ID: "PJ02", Name: "SQL files readable", Group: "project", Status: "pass"}
	for _, e := range result.Errors {
		readCheck.Status = "warn"
		readCheck.Details = append(readCheck.Details, e.Error())
	}
	out.HealthChecks = append(out.HealthChecks, readCheck)

	cycleCheck := HealthCheck{ID: "DG01", Name: "No circular dependencies", Group: "graph", Status: "pass"}
	levels, err := eng.ExecutionLevels()
	var cycleErr *engine.CycleError
	switch {
	case errors.As(err, &cycleErr):
		cycleCheck.Status = "error"
		for _, c := range cycleErr.Report.Cycles {
			cycleCheck.Details = append(cycleCheck.Details, strings.Join(append(append([]string{}, c.Tables...), c.Tables[0]), " -> "))
		}
	case err != nil:
		return nil, err
	}
	out.HealthChecks = append(out.HealthChecks, cycleCheck)

	isolatedCheck := HealthCheck{ID: "DG02", Name: "Connected tables", Group: "graph", Status: "pass"}
	if graph.NodeCount() > 1 {
		for _, name := range graph.Nodes() {
			if len(graph.GetParents(name)) == 0 && len(graph.GetChildren(name)) == 0 {
				isolatedCheck.Status = "warn"
				isolatedCheck.Details = append(isolatedCheck.Details, name+" has no detected dependencies or dependents")
			}
		}
	}
	out.HealthChecks = append(out.HealthChecks, isolatedCheck)

	out.HealthChecks = append(out.HealthChecks, checkExecutor(cfg.Executor))

	out.Summary = ProjectSummary{
		Tables:    graph.NodeCount(),
		EdgeCount: graph.EdgeCount(),
		DAGDepth:  len(levels),
		RootCount: len(graph.GetRoots()),
		LeafCount: len(graph.GetLeaves()),
	}
	for _, c := range out.HealthChecks {
		if c.Status != "pass" {
			out.IssueCount += max(1, len(c.Details))
		}
	}
	return out, nil
}

func checkExecutor(cfg config.ExecutorConfig) HealthCheck {
	check := HealthCheck{ID: "EX01", Name: "Executor available", Group: "executor", Status: "pass",
		Details: []string{fmt.Sprintf("%s, connection %s", cfg.Type, cfg.Connection)}}

	if !executor.IsRegistered(cfg.Type) {
		check.Status = "error"
		check.Details = []string{(&executor.UnknownExecutorError{Type: cfg.Type, Available: executor.List()}).Error()}
		return check
	}
	switch cfg.Type {
	case "snow":
		path, err := exec.LookPath(cfg.SnowPath)
		if err != nil {
			check.Status = "error"
			check.Details = []string{fmt.Sprintf("snow CLI %q not found on PATH", cfg.SnowPath)}
			return check
		}
		check.Details = append(check.Details, path)
	case "postgres":
		if cfg.DSN == "" {
			check.Status = "error"
			check.Details = []string{"postgres executor requires executor.dsn"}
		}
	}
	return check
}

func renderDoctor(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()
	markdown := r.EffectiveMode() == output.ModeMarkdown

	r.Header(1, "sqlbuild Project Health Report")
	if markdown {
		r.Println(output.FormatKeyValue("Tables", fmt.Sprintf("%d", out.Summary.Tables)))
		r.Println(output.FormatKeyValue("Dependencies", fmt.Sprintf("%d", out.Summary.EdgeCount)))
		r.Println(output.FormatKeyValue("DAG Depth", fmt.Sprintf("%d", out.Summary.DAGDepth)))
		r.Println("")
	} else {
		r.Printf("   Tables: %d | Dependencies: %d\n", out.Summary.Tables, out.Summary.EdgeCount)
		r.Printf("   DAG Depth: %d levels | Roots: %d | Leaves: %d\n", out.Summary.DAGDepth, out.Summary.RootCount, out.Summary.LeafCount)
		r.Println("")
	}

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Header(2, titleCaser.String(currentGroup))
		}

		icon := "✓"
		switch check.Status {
		case "warn":
			icon = "!"
		case "error":
			icon = "✗"
		}
		if !markdown {
			icon = r.StatusIcon(map[string]string{"pass": "success", "error": "failed"}[check.Status])
		}
		r.Printf("%s %s: %s\n", icon, check.ID, check.Name)

		for i, detail := range check.Details {
			if i >= 5 {
				r.Println(styles.Muted.Render(fmt.Sprintf("    ... and %d more", len(check.Details)-5)))
				break
			}
			r.Println(styles.Muted.Render("    - " + detail))
		}
	}
	r.Println("")

	if out.IssueCount == 0 {
		r.Success("No problems found")
	}
}
