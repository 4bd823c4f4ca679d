package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/history"
)

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage named run presets",
	}
	cmd.AddCommand(newPresetSaveCmd(), newPresetListCmd(), newPresetShowCmd(), newPresetDeleteCmd())
	return cmd
}

func newPresetSaveCmd() *cobra.Command {
	var (
		mode      string
		batchSize int
		delay     time.Duration
		timeout   time.Duration
		rate      float64
	)

	cmd := &cobra.Command{
		Use:     "save NAME [flags] -- <command template>",
		Short:   "Save a command template and run settings under a name",
		Example: `  bulkops preset save reject --mode parallel --batch-size 4 -- ./set-status {} rejected`,
		Args:    cobra.MinimumNArgs(2), //nolint:mnd // name plus at least one template word
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				if _, err := runnerFor(mode); err != nil {
					return err
				}
			}
			if batchSize < 0 || delay < 0 || timeout < 0 || rate < 0 {
				return errors.New("--batch-size, --delay, --timeout and --rate must be >= 0")
			}

			store, err := openHistory(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			preset := history.Preset{
				Name:            args[0],
				Command:         commandTemplate(args[1:]),
				Mode:            mode,
				BatchSize:       batchSize,
				InterBatchDelay: delay,
				Timeout:         timeout,
				RatePerSecond:   rate,
			}
			if err = store.SavePreset(preset); err != nil {
				return err
			}

			logger.Debug().Str("preset", preset.Name).Msg("preset saved")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Preset %q saved.\n", preset.Name)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", "", "scheduling mode: sequential or parallel")
	f.IntVarP(&batchSize, "batch-size", "b", 0, "chunk size (0 = mode default)")
	f.DurationVar(&delay, "delay", 0, "pause between chunks in sequential mode")
	f.DurationVar(&timeout, "timeout", 0, "per-item timeout")
	f.Float64Var(&rate, "rate", 0, "maximum items started per second")

	return cmd
}

func newPresetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presets, most recently saved first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			presets := store.Presets()
			if len(presets) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No presets saved.")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODE\tBATCH\tCOMMAND")
			for _, p := range presets {
				mode := p.Mode
				if mode == "" {
					mode = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Name, mode, p.BatchSize, shortCommand(p.Command))
			}
			return tw.Flush()
		},
	}
}

func newPresetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a preset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			preset, err := store.Preset(args[0])
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(preset)
		},
	}
}

func newPresetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			if err = store.DeletePreset(args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Preset %q deleted.\n", args[0])
			return err
		},
	}
}
