package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/engine"
	"github.com/ncl-analytics/sqlbuild/internal/extract"
	"github.com/spf13/cobra"
)

// NewOrderCommand creates the order command.
func NewOrderCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:     "order",
		Aliases: []string{"plan"},
		Short:   "Show the execution order of the SQL files",
		Long: `Scan the project for SQL files, infer table dependencies from
FROM, JOIN, INSERT INTO, UPDATE and MERGE INTO references, and print the
order the files must run in.

With --table, print every direct and indirect dependency of one table.

Dependencies are inferred heuristically. References built dynamically or
hidden in string literals are not detected.`,
		Example: `  # Full execution plan
  sqlbuild order

  # Dependencies of one table
  sqlbuild order --table DIM_PERSON

  # Machine-readable plan
  sqlbuild order -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrder(cmd, table)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Show dependencies for a specific table")

	return cmd
}

func runOrder(cmd *cobra.Command, table string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	if _, err := eng.BuildGraph(cmd.Context()); err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	if table != "" {
		return renderDependencies(r, eng, table)
	}

	order, err := eng.ExecutionOrder()
	if err != nil {
		var cycleErr *engine.CycleError
		if errors.As(err, &cycleErr) {
			renderCycles(r, cycleErr)
		}
		return err
	}
	return renderPlan(r, eng, order)
}

func renderDependencies(r *output.Renderer, eng *engine.Engine, name string) error {
	t, ok := eng.Table(name)
	if !ok {
		return fmt.Errorf("table %s: %w", extract.Normalize(name), engine.ErrUnknownTable)
	}

	out := output.DependenciesOutput{
		Table:        t.Name,
		Path:         t.Path,
		Direct:       eng.DirectDependencies(t.Name),
		Dependencies: eng.TableDependencies(t.Name),
	}
	if handled, err := r.Structured(out); handled {
		return err
	}

	r.Header(1, "Dependencies for "+t.Name)
	if len(out.Dependencies) == 0 {
		r.Println("No dependencies found")
		return nil
	}

	direct := make(map[string]bool, len(out.Direct))
	for _, d := range out.Direct {
		direct[d] = true
	}
	r.Println("Direct and indirect dependencies:")
	for _, dep := range out.Dependencies {
		if direct[dep] {
			r.Printf("- %s\n", dep)
		} else {
			r.Printf("- %s %s\n", dep, r.Styles().Muted.Render("(indirect)"))
		}
	}
	return nil
}

func renderPlan(r *output.Renderer, eng *engine.Engine, order []string) error {
	plan := output.PlanOutput{
		Tables:     make([]output.PlanEntry, 0, len(order)),
		TotalEdges: eng.GetGraph().EdgeCount(),
	}
	for i, name := range order {
		t, _ := eng.Table(name)
		plan.Tables = append(plan.Tables, output.PlanEntry{
			Position:     i + 1,
			Table:        name,
			Path:         t.Path,
			Dependencies: eng.DirectDependencies(name),
		})
	}
	if handled, err := r.Structured(plan); handled {
		return err
	}

	r.Header(1, "Execution Plan")
	rows := make([][]string, 0, len(plan.Tables))
	for _, e := range plan.Tables {
		rows = append(rows, []string{strconv.Itoa(e.Position), e.Table, output.FormatList(e.Dependencies), e.Path})
	}
	r.Table([]string{"#", "Table", "Dependencies", "File"}, rows)
	r.Println("")
	r.Muted(fmt.Sprintf("Total: %d tables, %d dependencies", len(plan.Tables), plan.TotalEdges))
	return nil
}

func renderCycles(r *output.Renderer, cycleErr *engine.CycleError) {
	report := cycleErr.Report
	out := output.CyclesOutput{
		Error:     "circular dependencies",
		Tables:    report.Tables(),
		Truncated: report.Truncated,
	}
	for _, c := range report.Cycles {
		out.Cycles = append(out.Cycles, output.CycleOutput{Tables: c.Tables, Dependencies: c.Dependencies})
	}
	if handled, _ := r.Structured(out); handled {
		return
	}

	r.Header(1, "Circular dependencies")
	for _, c := range report.Cycles {
		r.Println(r.Styles().Error.Render(strings.Join(append(append([]string{}, c.Tables...), c.Tables[0]), " -> ")))
		for _, t := range c.Tables {
			r.Printf("  %s depends on: %s\n", t, output.FormatList(c.Dependencies[t]))
		}
	}
	if report.Truncated {
		r.Muted("Cycle listing truncated; the tables below are all involved.")
	}
	r.Println("")
	r.Printf("Tables involved: %s\n", strings.Join(out.Tables, ", "))
}
