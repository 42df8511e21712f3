package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete every overdue earning session once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, log, db)
			if err != nil {
				return err
			}
			defer a.close()
			a.notifications.Start()
			defer a.notifications.Stop()

			n, err := a.sessions.SweepDue(cmd.Context())
			log.Info("sweep finished", zap.Int("completed", n))
			return err
		},
	}
}
