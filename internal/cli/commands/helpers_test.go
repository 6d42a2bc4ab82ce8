package commands

import (
	"testing"

	projectutil "github.com/ncl-analytics/sqlbuild/internal/testutil"
)

// writeCycleProject writes X and Y, which read each other, plus an
// independent Z.
func writeCycleProject(t *testing.T) string {
	t.Helper()
	return projectutil.WriteProject(t, map[string]string{
		"X.sql": "CREATE TABLE X AS SELECT * FROM Y",
		"Y.sql": "CREATE TABLE Y AS SELECT * FROM X",
		"Z.sql": "CREATE TABLE Z AS SELECT 1 AS id",
	})
}
