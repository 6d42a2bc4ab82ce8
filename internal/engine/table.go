package engine

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncl-analytics/sqlbuild/internal/extract"
)

// Table is one SQL file and the table it builds.
type Table struct {
	// Name is the upper-cased file stem.
	Name string
	// Path is relative to the project root.
	Path string
}

// FindSQLFiles walks root and indexes every .sql file by table name.
// Directories named in exclude are skipped. When two files share a stem the
// one visited later (lexical walk order) wins.
func FindSQLFiles(root string, exclude []string, logger *slog.Logger) (map[string]Table, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project directory %s is not a directory", root)
	}

	skip := make(map[string]bool, len(exclude))
	for _, d := range exclude {
		skip[d] = true
	}

	tables := make(map[string]Table)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(d.Name())
		if !strings.EqualFold(ext, ".sql") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := extract.Normalize(strings.TrimSuffix(d.Name(), ext))
		if prev, ok := tables[name]; ok {
			logger.Debug("table name collision, later file wins",
				"table", name, "overwritten", prev.Path, "path", rel)
		}
		tables[name] = Table{Name: name, Path: rel}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return tables, nil
}

// Tables returns the discovered tables.
func (e *Engine) Tables() map[string]Table {
	out := make(map[string]Table, len(e.tables))
	for k, v := range e.tables {
		out[k] = v
	}
	return out
}

// Table looks up a discovered table by name (case-insensitive).
func (e *Engine) Table(name string) (Table, bool) {
	t, ok := e.tables[extract.Normalize(name)]
	return t, ok
}
