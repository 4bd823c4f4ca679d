package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/history"
	"github.com/rshade/bulkops/internal/tui"
)

const tabPadding = 2

// maxCommandWidth bounds the display width of command templates in tables.
const maxCommandWidth = 60

// openHistory opens and loads the history store configured in cfg.
func openHistory(cfg *config.Config) (*history.Store, error) {
	path, err := cfg.HistoryFile()
	if err != nil {
		return nil, err
	}

	store := history.NewStore(path, history.Limits{
		MaxEntries: cfg.History.MaxEntries,
		MaxPresets: cfg.History.MaxPresets,
	})
	if err = store.Load(); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("path", store.Path()).
		Int("entries", len(store.Entries())).
		Int("presets", len(store.Presets())).
		Msg("history loaded")
	return store, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear recently used commands",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			entries := store.Entries()
			switch output {
			case outputJSON:
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if encodeErr := encoder.Encode(entries); encodeErr != nil {
					return fmt.Errorf("encoding history JSON: %w", encodeErr)
				}
				return nil
			case outputText:
				return renderHistoryTable(cmd, entries)
			default:
				return fmt.Errorf("unsupported output format %q", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text or json")
	return cmd
}

// renderHistoryTable renders history entries as a table.
func renderHistoryTable(cmd *cobra.Command, entries []history.Entry) error {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded yet.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, tabPadding, ' ', 0)

	fmt.Fprintln(tw, "STARTED\tMODE\tBATCH\tTOTAL\tOK\tFAILED\tRATE\tCOMMAND")
	fmt.Fprintln(tw, "-------\t----\t-----\t-----\t--\t------\t----\t-------")

	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%.2f%%\t%s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Mode,
			e.BatchSize,
			tui.FormatCount(e.Summary.Total),
			tui.FormatCount(e.Summary.Succeeded),
			tui.FormatCount(e.Summary.Failed),
			e.Summary.SuccessRate,
			shortCommand(e.Command),
		)
	}

	return tw.Flush()
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget all recorded runs (presets are kept)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			if err = store.Clear(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return err
		},
	}
}

// shortCommand truncates a command template on a grapheme boundary.
func shortCommand(s string) string {
	return ansi.Truncate(s, maxCommandWidth, "...")
}
