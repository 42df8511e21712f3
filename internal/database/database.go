package database

import (
	"fmt"
	"time"

	"vipearn/config"
	"vipearn/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormWriter sends gorm's log lines to zap at error level.
type gormWriter struct {
	log *zap.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Error(fmt.Sprintf(format, args...))
}

// NewDB opens the configured database. gorm's own logging goes to log at
// error level; missing rows are expected lookups and are not logged.
func NewDB(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{log: log.Named("gorm")}, logger.Config{
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.VipLevel{},
		&models.UserVip{},
		&models.EarningsSession{},
		&models.ReferralBonus{},
		&models.Deposit{},
		&models.Withdrawal{},
		&models.Notification{},
		&models.SystemSetting{},
		&models.AuditLog{},
	)
}
