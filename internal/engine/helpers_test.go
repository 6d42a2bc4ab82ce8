package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/ncl-analytics/sqlbuild/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records every request and fails or panics on demand.
type fakeExecutor struct {
	mu       sync.Mutex
	requests []executor.Request
	fail     map[string]error
	panics   map[string]bool
	closed   bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{fail: map[string]error{}, panics: map[string]bool{}}
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.panics[req.Table] {
		panic("executor exploded")
	}
	return f.fail[req.Table]
}

func (f *fakeExecutor) Name() string { return "fake" }

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

func (f *fakeExecutor) tables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Table)
	}
	return out
}

var errBoom = errors.New("boom: relation does not exist")

// chainProject is A <- B <- C with an unrelated D.
var chainProject = map[string]string{
	"A.sql":         "SELECT 1 AS id",
	"models/B.sql":  "SELECT * FROM A",
	"models/C.sql":  "SELECT * FROM B JOIN A ON B.id = A.id",
	"other/d.sql":   "SELECT 42 AS answer",
	".git/HEAD.sql": "SELECT * FROM A",
}

func newTestEngine(t *testing.T, files map[string]string, exec executor.Executor) *Engine {
	t.Helper()
	root := testutil.WriteProject(t, files)
	eng, err := New(Config{
		ProjectDir: root,
		Executor:   exec,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func positions(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	return pos
}
