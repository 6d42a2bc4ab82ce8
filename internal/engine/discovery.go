package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ncl-analytics/sqlbuild/internal/dag"
	"golang.org/x/sync/errgroup"
)

// DiscoveryResult contains statistics about a graph build.
type DiscoveryResult struct {
	TablesTotal int
	EdgesTotal  int

	// Errors (non-fatal)
	Errors []DiscoveryError

	Duration time.Duration
}

// DiscoveryError represents a file that could not be analysed.
// Its table stays in the graph with no dependencies.
type DiscoveryError struct {
	Table   string
	Path    string
	Message string
}

func (e DiscoveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// HasErrors returns true if any errors occurred.
func (r *DiscoveryResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary returns a human-readable summary.
func (r *DiscoveryResult) Summary() string {
	return fmt.Sprintf("Tables: %d | Dependencies: %d | Errors: %d | Duration: %s",
		r.TablesTotal, r.EdgesTotal, len(r.Errors), r.Duration.Round(time.Millisecond))
}

type extraction struct {
	deps []string
	err  error
}

// BuildGraph scans the project, extracts each file's dependencies and
// rebuilds the graph from scratch. Unreadable files are reported in the
// result and do not fail the build.
func (e *Engine) BuildGraph(ctx context.Context) (*DiscoveryResult, error) {
	start := time.Now()
	result := &DiscoveryResult{}

	e.logger.Info("Finding SQL files...")
	tables, err := FindSQLFiles(e.projectDir, e.excludeDirs, e.logger)
	if err != nil {
		return result, err
	}
	e.logger.Info(fmt.Sprintf("Found %d SQL files", len(tables)))

	names := make([]string, 0, len(tables))
	known := make(map[string]bool, len(tables))
	for name := range tables {
		names = append(names, name)
		known[name] = true
	}
	sort.Strings(names)

	// Each goroutine writes only its own slot.
	results := make([]extraction, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(e.projectDir, tables[name].Path))
			if err != nil {
				results[i] = extraction{err: err}
				return nil
			}
			results[i] = extraction{deps: e.extractor.Extract(string(content), name, known)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("dependency extraction cancelled: %w", err)
	}

	graph := dag.NewGraph()
	deps := make(map[string][]string, len(names))
	for _, name := range names {
		graph.AddNode(name)
	}
	for i, name := range names {
		r := results[i]
		if r.err != nil {
			e.logger.Warn("Error processing file", "table", name, "path", tables[name].Path, "error", r.err)
			result.Errors = append(result.Errors, DiscoveryError{
				Table:   name,
				Path:    tables[name].Path,
				Message: r.err.Error(),
			})
			deps[name] = []string{}
			continue
		}
		kept := make([]string, 0, len(r.deps))
		for _, dep := range r.deps {
			if dep == name || !known[dep] {
				continue
			}
			if err := graph.AddEdge(dep, name); err != nil {
				return result, fmt.Errorf("graph construction failed: %w", err)
			}
			kept = append(kept, dep)
		}
		sort.Strings(kept)
		deps[name] = kept
	}

	e.tables = tables
	e.deps = deps
	e.graph = graph

	result.TablesTotal = graph.NodeCount()
	result.EdgesTotal = graph.EdgeCount()
	result.Duration = time.Since(start)

	e.logger.Debug("dependency graph built",
		"tables", result.TablesTotal,
		"dependencies", result.EdgesTotal,
		"errors", len(result.Errors),
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// DirectDependencies returns the tables name references directly, sorted.
func (e *Engine) DirectDependencies(name string) []string {
	t, ok := e.Table(name)
	if !ok {
		return []string{}
	}
	return append([]string{}, e.deps[t.Name]...)
}
