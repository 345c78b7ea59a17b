package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/logging"
	"github.com/JakeFAU/page-analyzer/internal/storage/postgres"
)

// runMigrations is replaced in tests.
var runMigrations = postgres.Migrate

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate {up|down}",
		Short:     "Apply or revert the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(postgres.DirectionUp), string(postgres.DirectionDown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			direction := postgres.Direction(args[0])
			if err := runMigrations(cfg.DB.DSN, direction, logger.Named("migrate")); err != nil {
				return err
			}
			logger.Info("migrate finished", zap.String("direction", string(direction)))
			return nil
		},
	}
}
