package cli

import (
	"github.com/spf13/cobra"
)

// defaultInboxLimit bounds a plain "inbox list" to one screenful.
const defaultInboxLimit = 20

// NewInboxListCmd creates the inbox list command.
func NewInboxListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent inbox messages",
		Example: `  # Most recent 20 messages
  mailgoat inbox list

  # Most recent 50, as JSON
  mailgoat inbox list --limit 50 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			entries, err := api.ListInbox(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, entries)
			}
			renderInbox(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultInboxLimit, "maximum number of messages to list")
	return cmd
}
