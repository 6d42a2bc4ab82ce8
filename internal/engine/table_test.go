package engine

import (
	"path/filepath"
	"testing"

	"github.com/ncl-analytics/sqlbuild/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSQLFiles(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"stg_orders.sql":          "SELECT 1",
		"marts/Dim_Person.SQL":    "SELECT 2",
		"marts/readme.md":         "# not sql",
		".git/objects/cache.sql":  "SELECT 3",
		"node_modules/x/pkg.sql":  "SELECT 4",
		"deep/er/still/found.sql": "SELECT 5",
	})

	tables, err := FindSQLFiles(root, []string{".git", "node_modules"}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Len(t, tables, 3)
	assert.Equal(t, Table{Name: "STG_ORDERS", Path: "stg_orders.sql"}, tables["STG_ORDERS"])
	assert.Equal(t, filepath.Join("marts", "Dim_Person.SQL"), tables["DIM_PERSON"].Path)
	assert.Contains(t, tables, "FOUND")
	assert.NotContains(t, tables, "CACHE")
	assert.NotContains(t, tables, "PKG")
}

func TestFindSQLFiles_Collision(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"a/orders.sql": "SELECT 1",
		"b/ORDERS.sql": "SELECT 2",
	})

	tables, err := FindSQLFiles(root, nil, nil)
	require.NoError(t, err)

	require.Len(t, tables, 1)
	// Lexical walk visits a/ before b/, so b/ wins.
	assert.Equal(t, filepath.Join("b", "ORDERS.sql"), tables["ORDERS"].Path)
}

func TestFindSQLFiles_EmptyAndMissing(t *testing.T) {
	tables, err := FindSQLFiles(t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, tables)

	_, err = FindSQLFiles(filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)

	file := testutil.WriteFile(t, t.TempDir(), "x.sql", "SELECT 1")
	_, err = FindSQLFiles(file, nil, nil)
	assert.ErrorContains(t, err, "not a directory")
}

func TestEngine_TableLookup(t *testing.T) {
	eng := newTestEngine(t, chainProject, nil)
	_, err := eng.BuildGraph(t.Context())
	require.NoError(t, err)

	tbl, ok := eng.Table("b")
	require.True(t, ok)
	assert.Equal(t, "B", tbl.Name)

	_, ok = eng.Table("missing")
	assert.False(t, ok)

	tables := eng.Tables()
	delete(tables, "A")
	_, ok = eng.Table("A")
	assert.True(t, ok, "Tables must return a copy")
}
