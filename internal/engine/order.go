package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ncl-analytics/sqlbuild/internal/extract"
)

// maxReportedCycles bounds simple-cycle enumeration, which is exponential in
// the worst case.
const maxReportedCycles = 1000

// ErrUnknownTable is returned when a requested table was not discovered.
var ErrUnknownTable = errors.New("table not found in SQL files")

// Cycle is one elementary cycle with the declared dependencies of its members.
type Cycle struct {
	Tables       []string
	Dependencies map[string][]string
}

// CycleReport describes why no execution order exists.
type CycleReport struct {
	Cycles []Cycle
	// Components are the strongly connected components with more than one
	// member. Every table on a cycle is in exactly one of them.
	Components [][]string
	// Truncated is set when enumeration stopped at the cycle limit.
	Truncated bool
}

// Tables returns every table that participates in a cycle, sorted.
func (r *CycleReport) Tables() []string {
	var tables []string
	for _, c := range r.Components {
		tables = append(tables, c...)
	}
	sort.Strings(tables)
	return tables
}

// CycleError is returned when the dependency graph is cyclic.
type CycleError struct {
	Report *CycleReport
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Report.Cycles))
	for _, c := range e.Report.Cycles {
		parts = append(parts, strings.Join(append(append([]string{}, c.Tables...), c.Tables[0]), " -> "))
	}
	return fmt.Sprintf("circular dependencies prevent determining execution order: %s", strings.Join(parts, "; "))
}

// ExecutionOrder returns the tables in dependency order. Independent tables
// are ordered alphabetically. A cyclic graph yields a *CycleError and no
// order.
func (e *Engine) ExecutionOrder() ([]string, error) {
	if report := e.cycleReport(); report != nil {
		e.logger.Warn("Potential circular dependencies found", "cycles", len(report.Cycles))
		for _, c := range report.Cycles {
			e.logger.Warn(strings.Join(c.Tables, " -> "))
			for _, t := range c.Tables {
				e.logger.Warn(fmt.Sprintf("  %s depends on: %s", t, strings.Join(c.Dependencies[t], ", ")))
			}
		}
		return nil, &CycleError{Report: report}
	}

	order, err := e.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (e *Engine) cycleReport() *CycleReport {
	return e.cycleReportLimit(maxReportedCycles)
}

// cycleReportLimit lists at most limit cycles. Truncated is set only when
// the graph has more.
func (e *Engine) cycleReportLimit(limit int) *CycleReport {
	components := e.graph.StronglyConnectedComponents()
	if len(components) == 0 {
		return nil
	}

	raw := e.graph.SimpleCycles(limit + 1)
	report := &CycleReport{Components: components}
	if len(raw) > limit {
		raw = raw[:limit]
		report.Truncated = true
	}
	for _, tables := range raw {
		c := Cycle{Tables: tables, Dependencies: make(map[string][]string, len(tables))}
		for _, t := range tables {
			c.Dependencies[t] = append([]string{}, e.deps[t]...)
		}
		report.Cycles = append(report.Cycles, c)
	}
	return report
}

// TableDependencies returns every direct and indirect dependency of name,
// sorted. The table itself is never included. Unknown tables have none.
// Traversal terminates on cyclic graphs.
func (e *Engine) TableDependencies(name string) []string {
	name = extract.Normalize(name)
	if !e.graph.HasNode(name) {
		return []string{}
	}
	return e.graph.GetUpstreamNodes(name)
}

// ExecutionLevels groups tables by dependency depth.
func (e *Engine) ExecutionLevels() ([][]string, error) {
	if report := e.cycleReport(); report != nil {
		return nil, &CycleError{Report: report}
	}
	return e.graph.GetExecutionLevels()
}

// filterOrder keeps target and its dependencies, preserving order.
func (e *Engine) filterOrder(order []string, target string) ([]string, error) {
	t, ok := e.Table(target)
	if !ok {
		return nil, fmt.Errorf("test table %s: %w", extract.Normalize(target), ErrUnknownTable)
	}

	keep := map[string]bool{t.Name: true}
	for _, dep := range e.TableDependencies(t.Name) {
		keep[dep] = true
	}

	filtered := make([]string, 0, len(keep))
	for _, name := range order {
		if keep[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}
