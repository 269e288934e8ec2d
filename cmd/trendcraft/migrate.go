package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"trendcraft/internal/adapter/storage/migrations"
	"trendcraft/internal/app"
)

func newMigrateCommand(deps *commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the trend table schema",
	}

	run := func(name string, fn func(*cobra.Command) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: name + " migrations for the configured store driver",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return fn(c)
			},
		}
	}

	cmd.AddCommand(
		run("up", func(c *cobra.Command) error {
			return withMigrationDB(deps, func(m migrationTarget) error {
				return migrations.Up(m.db, m.dialect, deps.logger)
			})
		}),
		run("down", func(c *cobra.Command) error {
			return withMigrationDB(deps, func(m migrationTarget) error {
				return migrations.Down(m.db, m.dialect, deps.logger)
			})
		}),
		run("status", func(c *cobra.Command) error {
			return withMigrationDB(deps, func(m migrationTarget) error {
				if err := migrations.Status(m.db, m.dialect, deps.logger); err != nil {
					return err
				}
				v, err := migrations.Version(m.db, m.dialect)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.OutOrStdout(), "%s schema version %d\n", m.dialect, v)
				return err
			})
		}),
	)
	return cmd
}

type migrationTarget struct {
	db      *sql.DB
	dialect migrations.Dialect
}

func withMigrationDB(deps *commandDeps, fn func(migrationTarget) error) error {
	db, dialect, err := app.OpenMigrationDB(deps.config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(migrationTarget{db: db, dialect: dialect})
}
