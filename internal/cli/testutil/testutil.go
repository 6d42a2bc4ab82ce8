// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ncl-analytics/sqlbuild/internal/cli/config"
	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	projectutil "github.com/ncl-analytics/sqlbuild/internal/testutil"
	"github.com/spf13/cobra"
)

// ProjectFiles is a three-table project that runs on the sqlite executor:
// STG_A <- DIM_B <- FCT_C, with FCT_C also reading STG_A.
var ProjectFiles = map[string]string{
	"staging/STG_A.sql": "CREATE TABLE STG_A AS SELECT 1 AS id",
	"marts/DIM_B.sql":   "CREATE TABLE DIM_B AS SELECT id FROM STG_A",
	"marts/FCT_C.sql":   "CREATE TABLE FCT_C AS SELECT b.id FROM DIM_B b JOIN STG_A a ON a.id = b.id",
}

// SetupTestProject creates a temporary project from ProjectFiles.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	return projectutil.WriteProject(t, ProjectFiles)
}

// TestConfig returns a config rooted at dir that runs on an in-memory
// sqlite database and writes logs and state under dir.
func TestConfig(dir string, format output.OutputMode) *config.Config {
	return &config.Config{
		ProjectDir:   dir,
		ExcludeDirs:  []string{".git"},
		StatePath:    filepath.Join(dir, ".sqlbuild", "state.db"),
		LogDir:       filepath.Join(dir, "logs"),
		OutputFormat: string(format),
		Workers:      2,
		Executor: config.ExecutorConfig{
			Type:       "sqlite",
			Connection: "test",
			DSN:        ":memory:",
			SnowPath:   "snow",
			TempDir:    filepath.Join(dir, "temp"),
		},
	}
}

// Result holds the captured output of a command.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// Execute runs cmd with args and cfg stored in its context.
func Execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) Result {
	t.Helper()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, projectutil.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)

	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
