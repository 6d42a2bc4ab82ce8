package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/engine"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	NodeCount() int
	EdgeCount() int
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph of all tables.

Tables are grouped by execution level. Every table in a level depends only
on tables in earlier levels.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format`,
		Example: `  # Show the DAG
  sqlbuild dag

  # Output as JSON
  sqlbuild dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
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

	levels, err := eng.ExecutionLevels()
	if err != nil {
		var cycleErr *engine.CycleError
		if errors.As(err, &cycleErr) {
			renderCycles(r, cycleErr)
		}
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	graph := eng.GetGraph()
	switch r.EffectiveMode() {
	case output.ModeJSON, output.ModeYAML:
		_, err := r.Structured(dagOutput(graph, levels))
		return err
	case output.ModeMarkdown:
		return dagMarkdown(r, graph, levels)
	default:
		return dagText(r, graph, levels)
	}
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, table := range level {
			deps := graph.GetParents(table)
			children := graph.GetChildren(table)

			r.Printf("  %s\n", styles.TableName.Render(table))
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d tables, %d dependencies", graph.NodeCount(), graph.EdgeCount())))

	return nil
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Sources)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, table := range level {
			deps := graph.GetParents(table)
			children := graph.GetChildren(table)

			r.Printf("- %s\n", table)
			if len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Tables", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))

	return nil
}

func dagOutput(graph GraphQuerier, levels [][]string) output.DAGOutput {
	out := output.DAGOutput{
		Levels:      make([]output.DAGLevel, 0, len(levels)),
		TotalTables: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}

	for i, level := range levels {
		dagLevel := output.DAGLevel{
			Level:  i,
			Tables: make([]output.DAGNode, 0, len(level)),
		}
		for _, table := range level {
			dagLevel.Tables = append(dagLevel.Tables, output.DAGNode{
				Table:     table,
				DependsOn: graph.GetParents(table),
				UsedBy:    graph.GetChildren(table),
			})
		}
		out.Levels = append(out.Levels, dagLevel)
	}
	return out
}
