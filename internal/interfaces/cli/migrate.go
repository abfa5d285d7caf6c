package cli

import (
	"github.com/spf13/cobra"

	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

// NewMigrateCmd groups schema migration subcommands.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateVersionCmd())
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*postgres.Migrator, logging.Logger) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(cc.Config.Database, cc.Logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m, cc.Logger)
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator, logger logging.Logger) error {
				if err := m.Up(); err != nil {
					return err
				}
				logger.Info("migrations applied")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator, logger logging.Logger) error {
				if err := m.Down(); err != nil {
					return err
				}
				logger.Info("migration rolled back")
				return nil
			})
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator, _ logging.Logger) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{
					"version": version,
					"dirty":   dirty,
				})
			})
		},
	}
}
