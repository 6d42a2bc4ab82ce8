package executor

import (
	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	Register("sqlite", func(cfg Config) (Executor, error) {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		exec := NewSQLExecutor("sqlite", "sqlite", dsn, cfg.logger())
		// Files run in order on one connection so :memory: state carries over.
		exec.MaxOpenConns = 1
		return exec, nil
	})
}
