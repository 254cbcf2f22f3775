package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	postgres "github.com/pactsquad/pact-api/internal/adapters/postgres"
	"github.com/pactsquad/pact-api/internal/platform/config"
	"github.com/pactsquad/pact-api/internal/platform/logging"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd, "up", postgres.Migrate)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd, "down", postgres.MigrateDown)
			},
		},
	)
	return cmd
}

func runMigrate(cmd *cobra.Command, direction string, apply func(*pgxpool.Pool) error) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Storage.Backend != config.StoragePostgres {
		return fmt.Errorf("migrate requires storage.backend=%s (got %q)", config.StoragePostgres, cfg.Storage.Backend)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pool, err := postgres.NewPool(cmd.Context(), cfg.Storage.DatabaseURL, postgres.PoolOptions{MaxConns: 1, ConnectTimeout: cfg.NetworkTimeout})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := apply(pool); err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	logger.Info("migrations applied", zap.String("direction", direction))
	return nil
}
