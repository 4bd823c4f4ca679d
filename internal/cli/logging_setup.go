package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/logging"
)

// setupLogging configures the global logger based on config file, environment,
// and CLI flags, and stores a run ID in the command context.
func setupLogging(cmd *cobra.Command) {
	loggingCfg := config.GetLoggingConfig()

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
		loggingCfg.Caller = true
	}

	// Ensure log directory exists after all overrides have been applied.
	if err := loggingCfg.EnsureLogDir(); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not create log directory: %v\n", err)
	}

	status := config.InitLogger(loggingCfg)
	if debug {
		config.SetLogLevel("debug")
	}
	if status.FallbackReason != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: logging to stderr, could not open log file: %s\n", status.FallbackReason)
	}

	ctx := cmd.Context()
	runID := logging.GetOrGenerateRunID(ctx)
	ctx = logging.ContextWithRunID(ctx, runID)

	logger = logging.ComponentLogger(config.GetLogger(), "cli")
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().Ctx(ctx).Str("command", cmd.CommandPath()).Str("run_id", runID).Msg("command started")
}

// cleanupLogging closes the log file handle, if any.
func cleanupLogging() error {
	return config.CloseLogFile()
}
