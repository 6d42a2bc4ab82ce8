package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs",
		Long: `List recent runs from the state database, newest first.

With a run ID, show every table of that run with its status.`,
		Example: `  # Last 20 runs
  sqlbuild history

  # Tables of one run
  sqlbuild history 1f0c2a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(cmd, runID, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, runID string, limit int) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	store, err := state.OpenSQLite(cmdCtx.Cfg.StatePath, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if runID != "" {
		return renderRun(r, store, runID)
	}

	runs, err := store.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := output.HistoryOutput{Runs: make([]output.HistoryRun, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, historyRun(run))
	}
	if handled, err := r.Structured(out); handled {
		return err
	}

	r.Header(1, "Run History")
	if len(runs) == 0 {
		r.Muted("No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(out.Runs))
	for _, run := range out.Runs {
		mode := ""
		if run.DryRun {
			mode = "dry run"
		}
		if run.TestTable != "" {
			mode = "test " + run.TestTable
		}
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			run.Connection,
			fmt.Sprintf("%d/%d", run.Succeeded, run.Planned),
			mode,
		})
	}
	r.Table([]string{"Run", "Started", "Status", "Connection", "Succeeded", "Mode"}, rows)
	return nil
}

func renderRun(r *output.Renderer, store state.Store, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	records, err := store.GetExecutionRecords(runID)
	if err != nil {
		return fmt.Errorf("failed to get execution records: %w", err)
	}

	out := output.HistoryOutput{
		Runs:    []output.HistoryRun{historyRun(run)},
		Records: make([]output.RecordOutput, 0, len(records)),
	}
	for _, rec := range records {
		out.Records = append(out.Records, output.RecordOutput{
			Position:   rec.Position,
			Table:      rec.Table,
			Path:       rec.Path,
			Status:     rec.Status,
			Error:      rec.Error,
			DurationMS: rec.DurationMS,
		})
	}
	if handled, err := r.Structured(out); handled {
		return err
	}

	r.Header(1, "Run "+run.ID)
	r.Println(output.FormatKeyValue("Status", string(run.Status)))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.DateTime)))
	r.Println(output.FormatKeyValue("Connection", run.Connection))
	if run.Executor != "" {
		r.Println(output.FormatKeyValue("Executor", run.Executor))
	}
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error))
	}
	r.Println("")

	rows := make([][]string, 0, len(out.Records))
	for _, rec := range out.Records {
		rows = append(rows, []string{strconv.Itoa(rec.Position), rec.Table, rec.Status, strconv.FormatInt(rec.DurationMS, 10) + "ms", rec.Error})
	}
	r.Table([]string{"#", "Table", "Status", "Duration", "Error"}, rows)
	return nil
}

func historyRun(run *state.Run) output.HistoryRun {
	return output.HistoryRun{
		ID:          run.ID,
		Status:      string(run.Status),
		Target:      run.Target,
		Connection:  run.Connection,
		Executor:    run.Executor,
		TestTable:   run.TestTable,
		DryRun:      run.DryRun,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Planned:     run.Counts.Planned,
		Succeeded:   run.Counts.Succeeded,
		Failed:      run.Counts.Failed,
		Skipped:     run.Counts.Skipped,
		Error:       run.Error,
	}
}
