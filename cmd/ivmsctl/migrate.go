package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "file://db/migrations", "migration source URL")

	run := func(fn func(m *migrate.Migrate, log *zap.Logger) error) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, _ []string) error {
			cfg, zl, err := env()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			m, err := migrate.New(source, cfg.DB.DSN())
			if err != nil {
				return fmt.Errorf("failed to create migrate instance: %w", err)
			}
			defer m.Close()
			return fn(m, zl)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, log *zap.Logger) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migration up failed: %w", err)
				}
				log.Info("migrate: migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, log *zap.Logger) error {
				if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migration down failed: %w", err)
				}
				log.Info("migrate: migrations reverted")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply (N>0) or revert (N<0) N migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid steps argument: %w", err)
				}
				return run(func(m *migrate.Migrate, log *zap.Logger) error {
					if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return fmt.Errorf("migration steps failed: %w", err)
					}
					log.Info("migrate: steps applied", zap.Int("steps", n))
					return nil
				})(c, args)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				return run(func(m *migrate.Migrate, _ *zap.Logger) error {
					version, dirty, err := m.Version()
					if err != nil {
						return fmt.Errorf("failed to get version: %w", err)
					}
					return printJSON(c.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
				})(c, args)
			},
		},
	)
	return cmd
}
