package main

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/yambati03/touille/internal/infrastructure/persistence/migrations"
)

func newMigrateCommand(configFlag *string) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(newMigrateUpCommand(configFlag))
	migrateCmd.AddCommand(newMigrateDownCommand(configFlag))
	migrateCmd.AddCommand(newMigrateVersionCommand(configFlag))
	migrateCmd.AddCommand(newMigrateForceCommand(configFlag))

	return migrateCmd
}

func newMigrateUpCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(configFlag, func(m *migrations.Migrator) error {
				return m.Up()
			})
		},
	}
}

func newMigrateDownCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(configFlag, func(m *migrations.Migrator) error {
				return m.Down()
			})
		},
	}
}

func newMigrateVersionCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(configFlag, func(m *migrations.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
				return nil
			})
		},
	}
}

func newMigrateForceCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Mark the schema as being at a version without running migrations",
		Long:  "Overrides the recorded schema version. Use this to recover from a dirty state after a failed migration, once the database has been fixed by hand.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be a number: %w", err)
			}
			return withMigrator(configFlag, func(m *migrations.Migrator) error {
				return m.Force(version)
			})
		},
	}
}

// withMigrator opens a dedicated database connection, runs fn and
// closes everything. The migrator owns the connection here, unlike the
// server's auto-migrate path which shares the pool.
func withMigrator(configFlag *string, fn func(m *migrations.Migrator) error) error {
	cfg, err := loadConfig(configFlag)
	if err != nil {
		return err
	}
	log, err := newCLILogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	migrator, err := migrations.New(db, log)
	if err != nil {
		db.Close()
		return err
	}
	defer migrator.Close()

	return fn(migrator)
}
