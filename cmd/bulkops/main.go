package main

import (
	"errors"
	"os"

	"github.com/rshade/bulkops/internal/cli"
	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/pkg/version"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitItemsFailed = 2
)

func main() {
	os.Exit(extractExitCode(run()))
}

func run() error {
	// PersistentPostRunE does not run when a command fails.
	defer func() { _ = config.CloseLogFile() }()

	return cli.NewRootCmd(version.GetVersion()).Execute()
}

// extractExitCode maps a command error to the process exit code. A run that
// finished with failed items exits 2 so scripts can tell it apart from a run
// that could not start.
func extractExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cli.ErrItemsFailed):
		return exitItemsFailed
	default:
		return exitError
	}
}
