// Package engine discovers SQL files, infers their table dependencies and
// executes them in dependency order.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/ncl-analytics/sqlbuild/internal/dag"
	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/ncl-analytics/sqlbuild/internal/extract"
	"github.com/ncl-analytics/sqlbuild/internal/state"
)

// DefaultExcludeDirs are skipped while scanning for SQL files.
var DefaultExcludeDirs = []string{".git"}

// Engine builds the dependency graph of a project and runs it.
type Engine struct {
	logger *slog.Logger

	projectDir  string
	excludeDirs []string
	extractor   extract.Extractor
	executor    executor.Executor
	store       state.Store
	workers     int

	tables map[string]Table
	deps   map[string][]string
	graph  *dag.Graph
}

// Config holds engine configuration.
type Config struct {
	// ProjectDir is the root scanned for *.sql files
	ProjectDir string
	// ExcludeDirs are directory names skipped during the scan (default .git)
	ExcludeDirs []string
	// Extractor infers dependencies (default regex heuristic)
	Extractor extract.Extractor
	// Executor runs table SQL. May be nil when only planning.
	Executor executor.Executor
	// StatePath is the run history database. Empty disables history.
	StatePath string
	// Workers bounds concurrent file reads during graph construction
	Workers int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ProjectDir == "" {
		return nil, fmt.Errorf("project directory not specified")
	}

	logger.Debug("initializing engine", "project_dir", cfg.ProjectDir)

	excludes := cfg.ExcludeDirs
	if len(excludes) == 0 {
		excludes = DefaultExcludeDirs
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = extract.NewRegexExtractor()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var store state.Store
	if cfg.StatePath != "" {
		sqlite, err := state.OpenSQLite(cfg.StatePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		store = sqlite
	}

	return &Engine{
		logger:      logger,
		projectDir:  cfg.ProjectDir,
		excludeDirs: excludes,
		extractor:   extractor,
		executor:    cfg.Executor,
		store:       store,
		workers:     workers,
		tables:      make(map[string]Table),
		deps:        make(map[string][]string),
		graph:       dag.NewGraph(),
	}, nil
}

// Close releases the executor and the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.executor != nil {
		if err := e.executor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %v", errs)
	}
	return nil
}

// --- Getters (public accessors) ---

// GetGraph returns the dependency graph.
func (e *Engine) GetGraph() *dag.Graph {
	return e.graph
}

// GetStateStore returns the state store, or nil when history is disabled.
func (e *Engine) GetStateStore() state.Store {
	return e.store
}

// ProjectDir returns the scanned root.
func (e *Engine) ProjectDir() string {
	return e.projectDir
}
