// Package main is the entry point for the eventsys script runner.
package main

import (
	"errors"
	"os"

	"github.com/dshills/eventsys/internal/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	root := cli.NewRootCmd(cli.Build{Version: version, Commit: commit, Date: date})
	if err := root.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
