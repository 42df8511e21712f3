package main

import (
	"context"
	"time"

	"vipearn/config"
	"vipearn/internal/database"
	"vipearn/internal/domain"
	"vipearn/internal/logging"
	"vipearn/internal/metrics"
	"vipearn/internal/middleware"
	"vipearn/internal/router"
	"vipearn/internal/service"
	"vipearn/internal/worker"
	"vipearn/internal/ws"
	"vipearn/pkg/cloudinary"
	"vipearn/pkg/explorer"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the fully wired process: database, services, workers and HTTP deps.
type app struct {
	cfg           *config.Config
	log           *zap.Logger
	db            *gorm.DB
	rdb           *redis.Client
	metrics       *metrics.Metrics
	hub           *ws.Hub
	ledger        *service.LedgerService
	sessions      *service.SessionService
	deposits      *service.DepositService
	notifications *service.NotificationService
	sweeper       *worker.Runner
	detector      *worker.Runner
	deps          router.Deps
}

func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.Load()
	log, err := logging.New(cfg.Server.Env)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "logger")
	}
	db, err := database.NewDB(&cfg.Database, log)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "database")
	}
	return cfg, log, db, nil
}

func newApp(cfg *config.Config, log *zap.Logger, db *gorm.DB) (*app, error) {
	a := &app{cfg: cfg, log: log, db: db, metrics: metrics.New(), hub: ws.NewHub()}

	var deduper service.Deduper
	var limiter middleware.Limiter
	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := a.rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, continuing with degraded dedupe and rate limiting", zap.Error(err))
		}
		deduper = service.NewRedisDeduper(a.rdb)
		limiter = middleware.NewRedisRateLimiter(a.rdb, "vipearn:rl", 100, time.Minute, log)
	}

	channels := []service.Channel{service.NewRealtimeChannel(a.hub)}
	if fcm := service.NewFCMService(cfg.Firebase.ServiceAccountPath, log); fcm != nil {
		channels = append(channels, service.NewPushChannel(fcm))
	}
	tg, err := service.NewTelegramChannel(cfg.Telegram.BotToken)
	if err != nil {
		log.Warn("telegram notifications disabled", zap.Error(err))
	} else if tg != nil {
		channels = append(channels, tg)
	}
	if mail := service.NewEmailChannel(cfg.SMTP); mail != nil {
		channels = append(channels, mail)
	}
	a.notifications = service.NewNotificationService(db, deduper, a.metrics, log, cfg.Workers.NotifyQueueSize, channels...)

	a.ledger = service.NewLedgerService(db, a.metrics, log)
	referral := service.NewReferralService(db, a.ledger, a.notifications, a.metrics, log)
	vip := service.NewVipService(db, a.ledger, referral, a.notifications, log)
	a.sessions = service.NewSessionService(db, a.ledger, a.notifications, a.metrics, log, cfg.Session.Cooldown)
	a.deposits = service.NewDepositService(db, a.ledger, newOracle(cfg, log, a.metrics), a.notifications, a.metrics, log, service.DepositSettings{
		MinAmount:     decimal.NewFromFloat(cfg.Deposit.MinAmount),
		PendingExpiry: cfg.Deposit.PendingExpiry,
		Addresses:     cfg.Deposit.Addresses,
	})
	withdrawals := service.NewWithdrawalService(db, a.ledger, a.notifications, a.metrics, log, decimal.NewFromFloat(cfg.Withdrawal.MinAmount))
	auth := service.NewAuthService(cfg, db, referral, log)

	a.sweeper = worker.NewRunner("session-sweeper", cfg.Workers.SweepInterval, a.sweep, log, a.metrics)
	a.detector = worker.NewRunner("deposit-detector", cfg.Workers.DetectorInterval, a.deposits.DetectPending, log, a.metrics)
	admin := service.NewAdminService(db, a.ledger, referral, withdrawals, a.notifications, a.detector, log)

	var proofs cloudinary.ProofStore
	if cfg.Cloudinary.CloudName != "" {
		if proofs, err = cloudinary.NewClient(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret); err != nil {
			log.Warn("proof uploads disabled", zap.Error(err))
			proofs = nil
		}
	}

	a.deps = router.Deps{
		DB:            db,
		Log:           log,
		Metrics:       a.metrics,
		Limiter:       limiter,
		Hub:           a.hub,
		Proofs:        proofs,
		Auth:          auth,
		Ledger:        a.ledger,
		Referral:      referral,
		Vip:           vip,
		Sessions:      a.sessions,
		Deposits:      a.deposits,
		Withdrawals:   withdrawals,
		Notifications: a.notifications,
		Admin:         admin,
	}
	return a, nil
}

// sweep is one session-sweeper tick: complete overdue sessions, then roll
// daily earnings over when the UTC date changed.
func (a *app) sweep(ctx context.Context) error {
	_, sweepErr := a.sessions.SweepDue(ctx)
	if _, err := a.ledger.ResetDailyEarnings(ctx); err != nil {
		return errors.Wrap(err, "reset daily earnings")
	}
	return sweepErr
}

func newOracle(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *explorer.Oracle {
	ex := cfg.Explorer
	evm := func(network, url, key string, decimals int32, native string) explorer.Client {
		return explorer.NewEtherscanClient(explorer.EtherscanConfig{
			Network:       network,
			BaseURL:       url,
			APIKey:        key,
			TokenContract: ex.USDTContracts[network],
			TokenDecimals: decimals,
			NativeSymbol:  native,
			Timeout:       ex.Timeout,
		})
	}
	return explorer.NewOracle(log, m.OracleLookup,
		evm(domain.NetworkBSC, ex.BscScanURL, ex.BscScanKey, 18, "BNB"),
		evm(domain.NetworkEthereum, ex.EtherscanURL, ex.EtherscanKey, 6, "ETH"),
		evm(domain.NetworkPolygon, ex.PolygonScanURL, ex.PolygonScanKey, 6, "MATIC"),
		explorer.NewTronGridClient(ex.TronGridURL, ex.TronGridKey, ex.USDTContracts[domain.NetworkTron], ex.Timeout),
	)
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
