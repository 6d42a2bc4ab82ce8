package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ncl-analytics/sqlbuild/internal/cli/config"
	"github.com/ncl-analytics/sqlbuild/internal/cli/output"
	"github.com/ncl-analytics/sqlbuild/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Minimal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")
	cfg := testutil.TestConfig(dir, output.ModeMarkdown)

	res := testutil.Execute(t, NewInitCommand(), cfg, dir)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "sqlbuild project initialized!")

	assert.FileExists(t, filepath.Join(dir, config.DefaultConfigName))
	assert.FileExists(t, filepath.Join(dir, ".gitignore"))
	assert.NoDirExists(t, filepath.Join(dir, "sql"))

	loaded, _, err := config.Load(filepath.Join(dir, config.DefaultConfigName), "", nil)
	require.NoError(t, err)
	assert.Equal(t, dir, loaded.ProjectDir)
	assert.Equal(t, "snow", loaded.Executor.Type)
	assert.Equal(t, "data_lab_olids_uat", loaded.Executor.Connection)
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	cfg := testutil.TestConfig(dir, output.ModeMarkdown)

	require.NoError(t, testutil.Execute(t, NewInitCommand(), cfg, dir).Err)
	custom := []byte("project_dir: custom\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigName), custom, 0o600))

	res := testutil.Execute(t, NewInitCommand(), cfg, dir)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "already exists")

	content, err := os.ReadFile(filepath.Join(dir, config.DefaultConfigName))
	require.NoError(t, err)
	assert.Equal(t, custom, content)

	res = testutil.Execute(t, NewInitCommand(), cfg, dir, "--force")
	require.NoError(t, res.Err)
	content, err = os.ReadFile(filepath.Join(dir, config.DefaultConfigName))
	require.NoError(t, err)
	assert.NotEqual(t, custom, content)
}

func TestInit_Example(t *testing.T) {
	dir := t.TempDir()
	res := testutil.Execute(t, NewInitCommand(), testutil.TestConfig(dir, output.ModeMarkdown), dir, "--example")
	require.NoError(t, res.Err)

	loaded, _, err := config.Load(filepath.Join(dir, config.DefaultConfigName), "local", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sql"), loaded.ProjectDir)
	assert.Equal(t, "duckdb", loaded.Executor.Type)

	order := testutil.Execute(t, NewOrderCommand(), testutil.TestConfig(loaded.ProjectDir, output.ModeJSON))
	require.NoError(t, order.Err)

	var plan output.PlanOutput
	require.NoError(t, json.Unmarshal([]byte(order.Out), &plan))
	var tables []string
	for _, e := range plan.Tables {
		tables = append(tables, e.Table)
	}
	assert.Equal(t, []string{"PRACTICE", "STG_PATIENT", "DIM_PERSON", "PRACTICE_SUMMARY"}, tables)
}

func TestListTemplateFiles(t *testing.T) {
	files, err := listTemplateFiles("minimal")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{config.DefaultConfigName, ".gitignore"}, files)
}
