package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/engine"
	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/ncl-analytics/sqlbuild/internal/runlog"
	"github.com/spf13/cobra"
)

type runOptions struct {
	dryRun       bool
	connection   string
	testTable    string
	executorType string
	timeout      time.Duration
	noHistory    bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"build", "execute"},
		Short:   "Execute the SQL files in dependency order",
		Long: `Build the dependency graph and execute every SQL file in order.

Files run one at a time. The first failure stops the run; tables after it
are reported as not attempted. Nothing already executed is rolled back.

Each run rewrites logs/sql_execution_latest.log and removes older
sql_execution_*.log files.`,
		Example: `  # Preview without touching the warehouse
  sqlbuild run --dry-run

  # Run one table and everything it depends on
  sqlbuild run --test-table DIM_PERSON

  # Use another connection profile
  sqlbuild run --connection data_lab_olids_prod

  # Run against a local DuckDB file
  sqlbuild run --executor duckdb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log what would run without executing")
	cmd.Flags().StringVar(&opts.connection, "connection", "", "Connection profile (default "+executor.DefaultConnection+")")
	cmd.Flags().StringVar(&opts.testTable, "test-table", "", "Execute only this table and its dependencies")
	cmd.Flags().StringVar(&opts.executorType, "executor", "", "Executor type (snow|duckdb|postgres|sqlite)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-file execution timeout (0 = none)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in the state database")

	_ = cmd.RegisterFlagCompletionFunc("executor", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return executor.List(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runContext cancels the run on interrupt or terminate.
func runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, opts runOptions) error {
	cfg := getConfig(cmd)

	execCfg := cfg.Executor
	if cmd.Flags().Changed("connection") {
		execCfg.Connection = opts.connection
	}
	if cmd.Flags().Changed("executor") {
		execCfg.Type = opts.executorType
	}
	if cmd.Flags().Changed("timeout") {
		execCfg.Timeout = opts.timeout
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	sink, err := runlog.Open(cfg.LogDir, cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()
	logger := sink.Logger

	var exec executor.Executor
	if !opts.dryRun {
		exec, err = executor.New(executor.Config{
			Type:     execCfg.Type,
			DSN:      execCfg.DSN,
			SnowPath: execCfg.SnowPath,
			TempDir:  execCfg.TempDir,
			Timeout:  execCfg.Timeout,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("Failed to create executor", "error", err)
			return err
		}
	}

	cmdCtx, cleanup, err := newCommandContext(cmd, engineOptions{
		executor: exec,
		history:  !opts.noHistory,
		logger:   logger,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := runContext(cmd.Context())
	defer stop()

	summary, runErr := cmdCtx.Engine.Run(ctx, engine.RunOptions{
		DryRun:     opts.dryRun,
		Connection: execCfg.Connection,
		TestTable:  opts.testTable,
		Target:     cfg.Target,
	})
	if summary != nil {
		if err := renderRunSummary(cmdCtx.Renderer, summary, sink.Path); err != nil {
			return err
		}
	}
	return runErr
}

func runOutput(s *engine.RunSummary, logFile string) output.RunOutput {
	status := "success"
	if !s.OK() {
		status = "failed"
	}
	out := output.RunOutput{
		RunID:        s.RunID,
		Status:       status,
		DryRun:       s.DryRun,
		TestTable:    s.TestTable,
		Connection:   s.Connection,
		Planned:      s.Planned(),
		Attempted:    s.Attempted(),
		Succeeded:    s.Succeeded(),
		Failed:       s.Failed(),
		NotAttempted: s.NotAttempted(),
		DurationMS:   s.Duration.Milliseconds(),
		LogFile:      logFile,
		Records:      make([]output.RecordOutput, 0, len(s.Records)),
	}
	for _, rec := range s.Records {
		out.Records = append(out.Records, output.RecordOutput{
			Position:   rec.Position,
			Table:      rec.Table,
			Path:       rec.Path,
			Status:     string(rec.Status),
			Error:      rec.Error,
			DurationMS: rec.Duration.Milliseconds(),
		})
	}
	return out
}

func renderRunSummary(r *output.Renderer, s *engine.RunSummary, logFile string) error {
	out := runOutput(s, logFile)
	if handled, err := r.Structured(out); handled {
		return err
	}

	title := "Run Summary"
	if s.DryRun {
		title += " (dry run)"
	}
	r.Header(1, title)

	if r.EffectiveMode() == output.ModeMarkdown {
		rows := make([][]string, 0, len(out.Records))
		for _, rec := range out.Records {
			rows = append(rows, []string{strconv.Itoa(rec.Position), rec.Table, rec.Status, rec.Error})
		}
		r.Table([]string{"#", "Table", "Status", "Error"}, rows)
		r.Println("")
	} else {
		for _, rec := range out.Records {
			r.StatusLine(rec.Table, rec.Status, rec.Error)
		}
		r.Println("")
	}

	r.Println(output.FormatKeyValue("Planned", strconv.Itoa(out.Planned)))
	r.Println(output.FormatKeyValue("Succeeded", strconv.Itoa(out.Succeeded)))
	r.Println(output.FormatKeyValue("Failed", strconv.Itoa(out.Failed)))
	r.Println(output.FormatKeyValue("Not attempted", strconv.Itoa(out.NotAttempted)))
	r.Println(output.FormatKeyValue("Duration", s.Duration.Round(time.Millisecond).String()))
	r.Println(output.FormatKeyValue("Log", logFile))

	if s.OK() {
		r.Success(fmt.Sprintf("%d tables completed", out.Succeeded))
	}
	return nil
}
