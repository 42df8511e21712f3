package repository

import (
	"context"

	"vipearn/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

// CreateBonus persists one commission row.
func (r *ReferralRepository) CreateBonus(ctx context.Context, b *models.ReferralBonus) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// BonusExists reports whether the (referred, referrer, level, source) commission was already paid.
func (r *ReferralRepository) BonusExists(ctx context.Context, referredID, referrerID uint, level int, sourceRef string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReferralBonus{}).
		Where("referred_id = ? AND referrer_id = ? AND level = ? AND source_ref = ?", referredID, referrerID, level, sourceRef).
		Count(&n).Error
	return n > 0, err
}

// ListByReferrerID returns commissions earned by the referrer, newest first.
func (r *ReferralRepository) ListByReferrerID(ctx context.Context, referrerID uint, limit, offset int) ([]models.ReferralBonus, error) {
	var list []models.ReferralBonus
	err := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID).
		Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

type LevelTotal struct {
	Level int             `json:"level"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// SumByLevel aggregates the referrer's commissions per level.
func (r *ReferralRepository) SumByLevel(ctx context.Context, referrerID uint) ([]LevelTotal, error) {
	var rows []models.ReferralBonus
	if err := r.db.WithContext(ctx).Select("level", "bonus_amount").
		Where("referrer_id = ?", referrerID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	// Summed in Go so decimal precision is kept across drivers.
	byLevel := map[int]*LevelTotal{}
	for _, b := range rows {
		lt, ok := byLevel[b.Level]
		if !ok {
			lt = &LevelTotal{Level: b.Level}
			byLevel[b.Level] = lt
		}
		lt.Count++
		lt.Total = lt.Total.Add(b.BonusAmount)
	}
	out := make([]LevelTotal, 0, len(byLevel))
	for level := 1; level <= 3; level++ {
		if lt, ok := byLevel[level]; ok {
			out = append(out, *lt)
		} else {
			out = append(out, LevelTotal{Level: level})
		}
	}
	return out, nil
}

func (r *ReferralRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReferralBonus{}).Count(&n).Error
	return n, err
}
