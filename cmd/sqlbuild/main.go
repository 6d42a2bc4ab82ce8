// Package main provides the sqlbuild CLI.
package main

import (
	"os"

	"github.com/ncl-analytics/sqlbuild/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
