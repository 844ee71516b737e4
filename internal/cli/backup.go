package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorely/internal/backup"
	"github.com/dukerupert/chorely/internal/clock"
)

func newBackupCommand(e *env) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot and restore the database",
		Long: `Write consistent copies of the database to the backup directory.
Snapshots are encrypted with AES-256-GCM when backup.passphrase (or
CHORELY_BACKUP_PASSPHRASE) is set.`,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "backup directory, overrides config")

	backupDir := func() string {
		if dir != "" {
			return dir
		}
		return e.cfg.Backup.Dir
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Write a new snapshot and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			cfg := backup.Config{Dir: backupDir(), Keep: e.cfg.Backup.Keep, Passphrase: e.cfg.Backup.Passphrase}
			snap, err := backup.New(db, cfg, clock.System{}, e.logger.With("component", "backup")).Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), snap.Path)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := backup.List(backupDir())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCREATED\tSIZE\tENCRYPTED")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", s.Name, s.CreatedAt.Format(time.RFC3339), s.Size, s.Encrypted)
			}
			return tw.Flush()
		},
	}

	var force bool
	restore := &cobra.Command{
		Use:   "restore FILE",
		Short: "Replace the database with a snapshot",
		Long: `Restore a snapshot over the configured database path. Stop the
server first. The current database is only replaced with --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := backup.Restore(cmd.Context(), args[0], e.cfg.DBPath, e.cfg.Backup.Passphrase, force); err != nil {
				return err
			}
			e.logger.Info("database restored", "from", args[0], "to", e.cfg.DBPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", args[0], e.cfg.DBPath)
			return nil
		},
	}
	restore.Flags().BoolVar(&force, "force", false, "overwrite an existing database")

	cmd.AddCommand(create, list, restore)
	return cmd
}
