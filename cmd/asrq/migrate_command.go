package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/phrazzld/asrq/internal/platform/migrations"
	"github.com/phrazzld/asrq/internal/platform/postgres"
	"github.com/phrazzld/asrq/internal/platform/sqlite"
	"github.com/spf13/cobra"
)

var migrateCommands = []string{
	migrations.CommandUp,
	migrations.CommandDown,
	migrations.CommandStatus,
	migrations.CommandVersion,
	migrations.CommandReset,
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(migrateCommands, "|") + "]",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := migrations.CommandUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.loggerValue()

			var dialect migrations.Dialect
			switch cfg.Database.Driver {
			case "postgres":
				dialect = migrations.DialectPostgres
			case "sqlite":
				dialect = migrations.DialectSQLite
			default:
				return fmt.Errorf("database driver %q has no schema to migrate", cfg.Database.Driver)
			}

			var db *sql.DB
			if dialect == migrations.DialectPostgres {
				db, err = postgres.Open(cmd.Context(), cfg.Database.URL)
			} else {
				db, err = sqlite.Open(cmd.Context(), cfg.Database.Path)
			}
			if err != nil {
				return err
			}
			defer db.Close()

			return migrations.Run(cmd.Context(), db, dialect, command, log)
		},
	}
}
