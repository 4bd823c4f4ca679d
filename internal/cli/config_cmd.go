package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

// newConfigInitCmd creates the config init command, which writes the default
// configuration to $BULKOPS_HOME/config.yaml.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Initialize configuration file with default values",
		Annotations: map[string]string{annotationToleratesBadConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := config.GetConfigPath()
			if err != nil {
				return err
			}

			if !force {
				_, statErr := os.Stat(configPath)
				if statErr == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				}
				if !os.IsNotExist(statErr) {
					return fmt.Errorf("cannot access config path %s: %w", configPath, statErr)
				}
			}

			if err = config.EnsureConfigDir(); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err = config.New().Save(configPath); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", configPath)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration as YAML",
		Annotations: map[string]string{annotationToleratesBadConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(config.GetGlobalConfig())
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
