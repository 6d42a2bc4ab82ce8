package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	eng := newTestEngine(t, files, nil)
	_, err := eng.BuildGraph(t.Context())
	require.NoError(t, err)
	return eng
}

func TestExecutionOrder_Chain(t *testing.T) {
	eng := buildEngine(t, map[string]string{
		"A.sql": "SELECT 1 AS id",
		"B.sql": "SELECT * FROM A",
		"C.sql": "SELECT * FROM B JOIN A ON B.id = A.id",
	})

	order, err := eng.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestExecutionOrder_RespectsEveryEdge(t *testing.T) {
	// Random acyclic projects: table Ti may only read from Tj with j < i.
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 5; round++ {
		files := map[string]string{}
		n := 12
		for i := 0; i < n; i++ {
			sql := "SELECT 1 AS id"
			for j := 0; j < i; j++ {
				if rng.Intn(4) == 0 {
					sql += fmt.Sprintf("\nUNION ALL SELECT id FROM T%02d", j)
				}
			}
			files[fmt.Sprintf("T%02d.sql", i)] = sql
		}

		eng := buildEngine(t, files)
		order, err := eng.ExecutionOrder()
		require.NoError(t, err)
		require.Len(t, order, n)

		pos := positions(order)
		for name := range eng.Tables() {
			for _, dep := range eng.DirectDependencies(name) {
				assert.Less(t, pos[dep], pos[name], "%s must precede %s", dep, name)
			}
		}
	}
}

func TestExecutionOrder_Cycle(t *testing.T) {
	eng := buildEngine(t, map[string]string{
		"X.sql": "SELECT * FROM Y",
		"Y.sql": "SELECT * FROM X",
		"Z.sql": "SELECT * FROM X",
	})

	order, err := eng.ExecutionOrder()
	assert.Empty(t, order)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"X", "Y"}, cycleErr.Report.Tables())
	require.Len(t, cycleErr.Report.Cycles, 1)
	assert.Equal(t, []string{"X", "Y"}, cycleErr.Report.Cycles[0].Tables)
	assert.Equal(t, []string{"Y"}, cycleErr.Report.Cycles[0].Dependencies["X"])
	assert.False(t, cycleErr.Report.Truncated)
	assert.Contains(t, err.Error(), "X -> Y -> X")
}

func TestExecutionOrder_ReportsEveryCycleMember(t *testing.T) {
	eng := buildEngine(t, map[string]string{
		"A.sql": "SELECT * FROM B",
		"B.sql": "SELECT * FROM C",
		"C.sql": "SELECT * FROM A",
		"P.sql": "SELECT * FROM Q",
		"Q.sql": "SELECT * FROM P",
		"OK.sql": "SELECT * FROM A",
	})

	_, err := eng.ExecutionOrder()
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)

	assert.Equal(t, []string{"A", "B", "C", "P", "Q"}, cycleErr.Report.Tables())
	members := map[string]bool{}
	for _, c := range cycleErr.Report.Cycles {
		for _, tbl := range c.Tables {
			members[tbl] = true
		}
	}
	assert.Len(t, members, 5)
	assert.False(t, members["OK"])
}

func TestCycleReport_Truncation(t *testing.T) {
	eng := buildEngine(t, map[string]string{
		"A.sql": "SELECT * FROM B",
		"B.sql": "SELECT * FROM A JOIN C ON C.id = A.id",
		"C.sql": "SELECT * FROM B",
	})

	exact := eng.cycleReportLimit(2)
	require.NotNil(t, exact)
	assert.Len(t, exact.Cycles, 2)
	assert.False(t, exact.Truncated)

	over := eng.cycleReportLimit(1)
	require.NotNil(t, over)
	assert.Len(t, over.Cycles, 1)
	assert.True(t, over.Truncated)
}

func TestTableDependencies(t *testing.T) {
	eng := buildEngine(t, map[string]string{
		"A.sql": "SELECT 1 AS id",
		"B.sql": "SELECT * FROM A",
		"C.sql": "SELECT * FROM B",
		"D.sql": "SELECT * FROM C JOIN E ON C.id = E.id",
		"E.sql": "SELECT 2 AS id",
	})

	assert.Equal(t, []string{"A", "B", "C", "E"}, eng.TableDependencies("d"))
	assert.Equal(t, []string{"A"}, eng.TableDependencies("B"))
	assert.Equal(t, []string{}, eng.TableDependencies("A"))
	assert.Equal(t, []string{}, eng.TableDependencies("UNKNOWN"))

	// Closure equals direct deps plus the closure of each direct dep.
	for name := range eng.Tables() {
		want := map[string]bool{}
		for _, dep := range eng.DirectDependencies(name) {
			want[dep] = true
			for _, d := range eng.TableDependencies(dep) {
				want[d] = true
			}
		}
		got := eng.TableDependencies(name)
		assert.Len(t, got, len(want), name)
		for _, d := range got {
			assert.True(t, want[d], "%s: unexpected %s", name, d)
			assert.NotEqual(t, name, d)
		}
	}
}

func TestTableDependencies_TerminatesOnCycle(t *testing.T) {
	eng := buildEngine(t, map[string]string{
		"X.sql": "SELECT * FROM Y",
		"Y.sql": "SELECT * FROM X",
	})

	assert.Equal(t, []string{"Y"}, eng.TableDependencies("X"))
}

func TestExecutionLevels(t *testing.T) {
	eng := buildEngine(t, chainProject)

	levels, err := eng.ExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "D"}, {"B"}, {"C"}}, levels)
}

func TestFilterOrder(t *testing.T) {
	eng := buildEngine(t, chainProject)
	order, err := eng.ExecutionOrder()
	require.NoError(t, err)

	filtered, err := eng.filterOrder(order, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, filtered)

	_, err = eng.filterOrder(order, "nope")
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Contains(t, err.Error(), "NOPE")
}
