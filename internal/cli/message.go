package cli

import (
	"github.com/spf13/cobra"
)

// NewGetCmd creates the get command for fetching a message by ID.
func NewGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <message-id>",
		Short:   "Fetch a message by ID",
		Args:    cobra.ExactArgs(1),
		Example: `  mailgoat get msg_01J8X`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			msg, err := api.GetMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, msg)
			}
			renderMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	return cmd
}

// NewDeleteCmd creates the delete command for removing a message by ID.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <message-id>",
		Short:   "Delete a message by ID",
		Args:    cobra.ExactArgs(1),
		Example: `  mailgoat delete msg_01J8X`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			if err := api.DeleteMessage(cmd.Context(), args[0]); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{"deleted": args[0]})
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
	return cmd
}
