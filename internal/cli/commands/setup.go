package commands

import (
	"fmt"
	"log/slog"

	"github.com/ncl-analytics/sqlbuild/internal/cli/config"
	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/engine"
	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// engineOptions tunes the engine a command needs.
type engineOptions struct {
	// executor is attached for commands that run SQL; nil plans only.
	executor executor.Executor
	// history opens the run history store.
	history bool
	// logger replaces the context logger (run uses the execution log).
	logger *slog.Logger
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return newCommandContext(cmd, engineOptions{})
}

func newCommandContext(cmd *cobra.Command, opts engineOptions) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	if opts.logger != nil {
		cmdCtx.Logger = opts.logger
	}

	eng, err := createEngine(cmdCtx.Cfg, cmdCtx.Logger, opts)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	cleanup := func() {
		_ = eng.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd)
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the loaded configuration, loading defaults when the
// command runs outside the root command (tests).
func getConfig(cmd *cobra.Command) *config.Config {
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		return cfg
	}
	cfg, _, err := config.Load("", "", nil)
	if err != nil {
		return &config.Config{
			ProjectDir:   config.DefaultProjectDir,
			StatePath:    config.DefaultStateFile,
			LogDir:       config.DefaultLogDir,
			OutputFormat: config.DefaultOutput,
		}
	}
	return cfg
}

func createEngine(cfg *config.Config, logger *slog.Logger, opts engineOptions) (*engine.Engine, error) {
	engineCfg := engine.Config{
		ProjectDir:  cfg.ProjectDir,
		ExcludeDirs: cfg.ExcludeDirs,
		Executor:    opts.executor,
		Workers:     cfg.Workers,
		Logger:      logger,
	}
	if opts.history {
		engineCfg.StatePath = cfg.StatePath
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		if opts.executor != nil {
			_ = opts.executor.Close()
		}
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return eng, nil
}
