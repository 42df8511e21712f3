package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vipearn/internal/database"
	"vipearn/internal/router"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
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

	a, err := newApp(cfg, log, db)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.notifications.Start()
	a.deps.Admin.SetBaseContext(ctx)
	if err := a.sessions.Resume(ctx); err != nil {
		log.Error("resume session timers failed", zap.Error(err))
	}
	a.sweeper.Start(ctx)
	if cfg.Workers.DetectorAutoRun {
		a.detector.Start(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(cfg, a.deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error("listen failed", zap.Error(err))
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("server shutdown", zap.Error(serr))
	}
	a.sweeper.Stop()
	a.detector.Stop()
	a.sessions.Stop()
	a.notifications.Stop()
	log.Info("server stopped")
	return err
}
