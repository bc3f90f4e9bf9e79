package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mailgoat/mailgoat/internal/config"
)

// NewConfigInitCmd creates the config init command for writing a default
// configuration file.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates ~/.config/mailgoat/config.yaml populated with defaults.

The API key is read from the ` + config.EnvAPIKey + ` environment variable at
init time so a configured shell produces a working file immediately.`,
		Example: `  # Create the configuration file
  mailgoat config init

  # Overwrite an existing file
  mailgoat config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Root().PersistentFlags().GetString("config")
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("cannot access config path %s: %w", configPath, err)
				}
			}

			if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			cfg := config.New()
			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			cmd.Printf("Configuration initialized successfully\n")
			cmd.Printf("Configuration file: %s\n", configPath)
			if cfg.API.Key == "" {
				cmd.Printf("No API key found: set %s or edit the api.key field\n", config.EnvAPIKey)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	return cmd
}

// NewConfigShowCmd creates the config show command for printing the
// effective configuration after defaults and environment overrides.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()

			shown := *cfg
			if shown.API.Key != "" {
				shown.API.Key = redactKey(shown.API.Key)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, shown)
			}
			out, err := yaml.Marshal(shown)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

// redactKey keeps just enough of a key to identify it.
func redactKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return "****"
	}
	return "****" + key[len(key)-visible:]
}
