// Package cli provides the chorely command-line interface.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorely/internal/config"
	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/logging"
)

// env holds what every subcommand shares once flags are parsed.
type env struct {
	configPath string
	dbPath     string

	cfg    config.Config
	loc    *time.Location
	logger *slog.Logger
}

func (e *env) openDB() (*sql.DB, error) {
	db, err := database.Open(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", e.cfg.DBPath, err)
	}
	return db, nil
}

// NewRootCommand builds the chorely command tree.
func NewRootCommand(version string) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "chorely",
		Short:         "Household chore scheduling",
		Long:          "chorely schedules recurring household chores, tracks who does them and keeps score.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			if e.dbPath != "" {
				cfg.DBPath = e.dbPath
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.loc = loc
			e.logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	defaultConfig := os.Getenv("CHORELY_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "chorely.toml"
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", defaultConfig, "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&e.dbPath, "db", "", "database path, overrides config")

	root.AddCommand(
		newServeCommand(e),
		newGenerateCommand(e),
		newMembersCommand(e),
		newBackupCommand(e),
		newVAPIDKeysCommand(),
	)
	return root
}
