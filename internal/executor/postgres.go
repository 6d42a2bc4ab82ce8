package executor

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

func init() {
	Register("postgres", func(cfg Config) (Executor, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres executor requires a dsn")
		}
		return NewSQLExecutor("postgres", "pgx", cfg.DSN, cfg.logger()), nil
	})
}
