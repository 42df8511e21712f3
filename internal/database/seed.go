package database

import (
	"context"
	"errors"
	"strconv"

	"vipearn/config"
	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var defaultVipLevels = []models.VipLevel{
	{Name: "VIP 1", Amount: decimal.NewFromInt(30), DailyEarning: decimal.NewFromInt(1), SortOrder: 1, Description: "Entry tier"},
	{Name: "VIP 2", Amount: decimal.NewFromInt(180), DailyEarning: decimal.RequireFromString("6.5"), SortOrder: 2},
	{Name: "VIP 3", Amount: decimal.NewFromInt(400), DailyEarning: decimal.NewFromInt(15), SortOrder: 3},
	{Name: "VIP 4", Amount: decimal.NewFromInt(1000), DailyEarning: decimal.NewFromInt(40), SortOrder: 4},
	{Name: "VIP 5", Amount: decimal.NewFromInt(3000), DailyEarning: decimal.NewFromInt(130), SortOrder: 5, Description: "Top tier"},
}

// SeedVipLevels inserts the default catalog when the table is empty.
func SeedVipLevels(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.VipLevel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	levels := make([]models.VipLevel, len(defaultVipLevels))
	copy(levels, defaultVipLevels)
	for i := range levels {
		levels[i].IsActive = true
	}
	return db.Create(&levels).Error
}

// SeedSettings writes tunable defaults taken from config without overwriting
// values an admin already changed.
func SeedSettings(db *gorm.DB, cfg *config.Config) error {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return repository.NewSettingRepository(db).SeedDefaults(context.Background(), map[string]string{
		domain.SettingReferralRateLevel1:   f(cfg.Referral.Level1Rate),
		domain.SettingReferralRateLevel2:   f(cfg.Referral.Level2Rate),
		domain.SettingReferralRateLevel3:   f(cfg.Referral.Level3Rate),
		domain.SettingSessionCooldownHours: f(cfg.Session.Cooldown.Hours()),
		domain.SettingMinWithdrawal:        f(cfg.Withdrawal.MinAmount),
		domain.SettingMinDeposit:           f(cfg.Deposit.MinAmount),
	})
}

// SeedAdmin creates the admin account when ADMIN_PASSWORD is set and no admin exists.
func SeedAdmin(db *gorm.DB, cfg *config.AdminConfig, log *zap.Logger) {
	if cfg.Password == "" {
		return
	}
	var existing models.User
	err := db.Where("role = ?", domain.RoleAdmin).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("admin lookup failed", zap.Error(err))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("admin password hash failed", zap.Error(err))
		return
	}
	code, err := repository.GenerateReferralCode()
	if err != nil {
		log.Error("admin referral code failed", zap.Error(err))
		return
	}
	admin := &models.User{
		Email:        cfg.Email,
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		ReferralCode: code,
		IsActive:     true,
	}
	if err := db.Create(admin).Error; err != nil {
		log.Error("admin create failed", zap.Error(err))
		return
	}
	log.Info("seeded admin account", zap.String("email", cfg.Email))
}
