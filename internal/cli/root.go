package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/bulkops/internal/config"
)

// ErrItemsFailed is returned by "run" when at least one item failed and
// --allow-failures was not given.
var ErrItemsFailed = errors.New("bulk run had failures")

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the bulkops CLI.
// It loads configuration, wires up logging and registers the run, history,
// preset and config subcommands.
func NewRootCmd(ver string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bulkops",
		Short:         "Run a command over many records with batching and progress",
		Long:          "bulkops applies one command to every item of a list, sequentially or in bounded parallel chunks, and reports per-item failures.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				if !toleratesBadConfig(cmd) {
					return err
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			setupLogging(cmd)
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging()
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "YAML overlay applied on top of the global configuration")
	cmd.AddCommand(newRunCmd(), newHistoryCmd(), newPresetCmd(), newConfigCmd())

	return cmd
}

// annotationToleratesBadConfig marks commands that must keep working when the
// configuration file is unreadable or invalid, so users can inspect or reset it.
const annotationToleratesBadConfig = "bulkops/tolerates-bad-config"

func toleratesBadConfig(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationToleratesBadConfig] == "true"
}

// loadConfig loads the global configuration, applies the --config overlay
// and validates the result.
func loadConfig(cmd *cobra.Command) error {
	cfg := config.GetGlobalConfig()
	if err := config.GlobalConfigError(); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if overlay, _ := cmd.Flags().GetString("config"); overlay != "" {
		if err := config.ShallowMergeYAML(cfg, overlay); err != nil {
			return err
		}
		// Environment still wins over the overlay.
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}
	}

	return cfg.Validate()
}

const rootCmdExample = `  # Delete jobs listed in a file, five at a time
  bulkops run --items jobs.txt --mode parallel -- curl -fsS -X DELETE https://hr.example.com/api/jobs/{}

  # Move candidates to the next stage one by one, pausing between batches
  bulkops run --items candidates.txt --batch-size 10 --delay 2s -- ./advance-stage {}

  # Save the invocation as a preset and reuse it
  bulkops preset save archive --mode parallel --batch-size 8 -- ./archive {}
  bulkops run --preset archive --items old-postings.txt

  # Show recently used commands
  bulkops history list`
