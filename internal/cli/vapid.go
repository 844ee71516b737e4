package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorely/internal/push"
)

func newVAPIDKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for push notifications",
		Args:  cobra.NoArgs,
		// Needs no config or database.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "[push]")
			fmt.Fprintf(cmd.OutOrStdout(), "vapid_public_key = %q\n", pub)
			fmt.Fprintf(cmd.OutOrStdout(), "vapid_private_key = %q\n", priv)
			return nil
		},
	}
}
