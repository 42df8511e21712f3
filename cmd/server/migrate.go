package main

import (
	"vipearn/internal/database"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed the VIP catalog, settings and admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := database.AutoMigrate(db); err != nil {
				return errors.Wrap(err, "migrate")
			}
			if err := database.SeedVipLevels(db); err != nil {
				return errors.Wrap(err, "seed vip levels")
			}
			if err := database.SeedSettings(db, cfg); err != nil {
				return errors.Wrap(err, "seed settings")
			}
			database.SeedAdmin(db, &cfg.Admin, log)
			log.Info("migration complete")
			return nil
		},
	}
}
