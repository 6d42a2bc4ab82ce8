package executor

import (
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func(cfg Config) (Executor, error) {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return NewSQLExecutor("duckdb", "duckdb", dsn, cfg.logger()), nil
	})
}
