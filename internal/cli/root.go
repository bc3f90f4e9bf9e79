// Package cli wires the mailgoat command tree: send, get, delete, inbox,
// batch, and config. Commands stay thin; the resilience logic lives in
// internal/client and internal/batch.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mailgoat/mailgoat/internal/config"
	"github.com/mailgoat/mailgoat/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the mailgoat CLI.
// It wires up configuration loading, logging, tracing, and subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.Result

	cmd := &cobra.Command{
		Use:     "mailgoat",
		Short:   "MailGoat command-line mail client",
		Long:    "MailGoat: send and fetch mail through the MailGoat transfer API with\nretries, circuit breaking, and resumable bulk sends.",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}
			if err := config.InitGlobalConfig(configPath); err != nil {
				return err
			}

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default ~/.config/mailgoat/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON output")

	cmd.AddCommand(
		NewSendCmd(), NewGetCmd(), NewDeleteCmd(),
		newInboxCmd(), newBatchCmd(), newConfigCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Send a message
  mailgoat send --to goat@example.com --subject "Hi" --body "Hello there"

  # Send a templated message
  mailgoat send --to goat@example.com --subject "Welcome" --template welcome --data name=Ada

  # Fetch or delete a message by ID
  mailgoat get msg_01J8X
  mailgoat delete msg_01J8X

  # List recent inbox messages
  mailgoat inbox list --limit 20

  # Bulk send with resume support
  mailgoat batch send --input messages.jsonl --concurrency 8 --batch-id launch --resume

  # Initialize configuration
  mailgoat config init`

// newInboxCmd creates the inbox command group.
func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "inbox", Short: "Inbox commands"}
	cmd.AddCommand(NewInboxListCmd())
	return cmd
}

// newBatchCmd creates the batch command group with bulk send subcommands.
func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "batch", Short: "Bulk send commands"}
	cmd.AddCommand(NewBatchSendCmd(), NewBatchStatusCmd(), NewBatchCleanupCmd())
	return cmd
}

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd())
	return cmd
}
