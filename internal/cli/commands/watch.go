package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/engine"
	"github.com/spf13/cobra"
)

const defaultDebounce = 200 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-print the execution order whenever SQL files change",
		Long: `Watch the project for added, changed or removed SQL files and print
the execution order after every change. Cycles introduced by an edit are
reported immediately. Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w := &projectWatcher{
				eng:      cmdCtx.Engine,
				r:        cmdCtx.Renderer,
				logger:   cmdCtx.Logger,
				exclude:  cmdCtx.Cfg.ExcludeDirs,
				debounce: debounce,
			}
			return w.run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "Quiet period before re-planning")

	return cmd
}

type projectWatcher struct {
	eng      *engine.Engine
	r        *output.Renderer
	logger   *slog.Logger
	exclude  []string
	debounce time.Duration

	// planned is called after every plan, with the planning error if any.
	planned func(error)
}

func (w *projectWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	root := w.eng.ProjectDir()
	if err := w.watchDirRecursive(watcher, root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	w.plan(ctx)
	w.r.Muted(fmt.Sprintf("Watching %s for changes...", root))

	// Timer callbacks only signal; planning stays on this goroutine.
	replan := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchDirRecursive(watcher, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".sql") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				select {
				case replan <- struct{}{}:
				default:
				}
			})

		case <-replan:
			w.plan(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *projectWatcher) plan(ctx context.Context) {
	err := w.replan(ctx)
	if err != nil {
		var cycleErr *engine.CycleError
		if !errors.As(err, &cycleErr) {
			w.r.Error(err.Error())
		}
	}
	if w.planned != nil {
		w.planned(err)
	}
}

func (w *projectWatcher) replan(ctx context.Context) error {
	if _, err := w.eng.BuildGraph(ctx); err != nil {
		return err
	}
	order, err := w.eng.ExecutionOrder()
	if err != nil {
		var cycleErr *engine.CycleError
		if errors.As(err, &cycleErr) {
			renderCycles(w.r, cycleErr)
		}
		return err
	}
	return renderPlan(w.r, w.eng, order)
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func (w *projectWatcher) watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return w.walkDirs(dir, watcher.Add)
}

// walkDirs calls add for dir and every subdirectory that is not excluded.
func (w *projectWatcher) walkDirs(dir string, add func(string) error) error {
	skip := make(map[string]bool, len(w.exclude))
	for _, d := range w.exclude {
		skip[d] = true
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skip[d.Name()] {
			return filepath.SkipDir
		}
		return add(path)
	})
}
