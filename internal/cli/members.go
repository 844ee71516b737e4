package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

func newMembersCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage household members",
	}
	cmd.AddCommand(newMembersAddCommand(e), newMembersListCommand(e))
	return cmd
}

func newMembersAddCommand(e *env) *cobra.Command {
	var role, color, emoji string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a household member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ms := store.NewMemberStore(db)
			exists, err := ms.NameExists(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("a member named %q already exists", args[0])
			}

			m, err := ms.Create(cmd.Context(), args[0], model.Role(role), color, emoji)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (id %d, %s)\n", m.Name, m.ID, m.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(model.RoleOther), "parent, child or other")
	cmd.Flags().StringVar(&color, "color", "#3B82F6", "display color")
	cmd.Flags().StringVar(&emoji, "emoji", "😀", "avatar emoji")
	return cmd
}

func newMembersListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List household members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			members, err := store.NewMemberStore(db).List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tROLE")
			for _, m := range members {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", m.ID, m.Name, m.Role)
			}
			return tw.Flush()
		},
	}
}
