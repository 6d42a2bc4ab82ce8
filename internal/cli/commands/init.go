package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ncl-analytics/sqlbuild/internal/cli/config"
	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a sqlbuild.yaml in a SQL project",
		Long: `Write a commented sqlbuild.yaml and a .gitignore for the run artefacts
(logs/, temp/, .sqlbuild/).

Use --example to also create a small project under sql/ with staging,
reference and mart tables that depend on each other.`,
		Example: `  # Initialize in current directory
  sqlbuild init

  # Try it out
  sqlbuild init demo --example && cd demo && sqlbuild order`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(getConfig(cmd).OutputFormat))

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example project with dependent SQL files")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.DefaultConfigName)
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles(template)
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("sqlbuild project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  sqlbuild order           Show the execution order")
	r.Println("  sqlbuild run --dry-run   Preview a run")
	r.Println("  sqlbuild doctor          Check the project and executor")

	return nil
}
