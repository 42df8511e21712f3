package repository

import (
	"context"
	"fmt"

	"vipearn/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository reads and writes the admin-tunable values in
// system_settings: referral rates, session cooldown and the deposit and
// withdrawal minimums. Values are stored as decimal strings.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the raw value of key, or gorm.ErrRecordNotFound.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var s models.SystemSetting
	if err := r.db.WithContext(ctx).Where("setting_key = ?", key).Take(&s).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

// Decimal reads key as a non-negative decimal. A missing row yields fallback
// and no error; an unusable value yields fallback and an error naming it.
func (r *SettingRepository) Decimal(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	val, err := r.Get(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, errors.Wrapf(err, "read setting %s", key)
	}
	d, err := decimal.NewFromString(val)
	if err != nil || d.IsNegative() {
		return fallback, fmt.Errorf("setting %s has unusable value %q", key, val)
	}
	return d, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: key, Value: value}).Error
}

func (r *SettingRepository) List(ctx context.Context) ([]models.SystemSetting, error) {
	var list []models.SystemSetting
	err := r.db.WithContext(ctx).Order("setting_key ASC").Find(&list).Error
	return list, err
}

// SeedDefaults inserts the given values, keeping any key that already has one.
func (r *SettingRepository) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	if len(defaults) == 0 {
		return nil
	}
	rows := make([]models.SystemSetting, 0, len(defaults))
	for k, v := range defaults {
		rows = append(rows, models.SystemSetting{Key: k, Value: v})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoNothing: true,
	}).Create(&rows).Error
}
