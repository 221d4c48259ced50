// CLI entry point for the clinical entity pipeline.
package main

import (
	"os"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/interfaces/cli"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// Execute has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(errors.ExitStatusForCode(errors.GetCode(err)))
	}
}

//Personal.AI order the ending
