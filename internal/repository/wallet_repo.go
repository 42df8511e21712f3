package repository

import (
	"context"
	"errors"

	"vipearn/internal/models"

	"gorm.io/gorm"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uint) (*models.Wallet, error) {
	w, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &models.Wallet{UserID: userID}
	if err := r.db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

// LockForUpdate loads (creating if needed) the wallet row and locks it for the
// rest of the surrounding transaction. Must be called on a WithTx repository.
func (r *WalletRepository) LockForUpdate(ctx context.Context, userID uint) (*models.Wallet, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	var w models.Wallet
	if err := forUpdate(r.db.WithContext(ctx)).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Save writes back every aggregate of a locked wallet.
func (r *WalletRepository) Save(ctx context.Context, w *models.Wallet) error {
	return r.db.WithContext(ctx).Model(&models.Wallet{}).Where("id = ?", w.ID).Updates(map[string]interface{}{
		"balance":              w.Balance,
		"total_deposits":       w.TotalDeposits,
		"total_earnings":       w.TotalEarnings,
		"total_referral_bonus": w.TotalReferralBonus,
		"daily_earnings":       w.DailyEarnings,
		"daily_earnings_date":  w.DailyEarningsDate,
	}).Error
}

// ResetDailyEarnings zeroes the daily figure of wallets that belong to an earlier day.
func (r *WalletRepository) ResetDailyEarnings(ctx context.Context, today string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("daily_earnings_date <> ? AND daily_earnings <> 0", today).
		Updates(map[string]interface{}{"daily_earnings": 0, "daily_earnings_date": today})
	return res.RowsAffected, res.Error
}
