package repository

import (
	"context"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/models"

	"gorm.io/gorm"
)

type DepositRepository struct {
	db *gorm.DB
}

func NewDepositRepository(db *gorm.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) WithTx(tx *gorm.DB) *DepositRepository {
	return &DepositRepository{db: tx}
}

func (r *DepositRepository) Create(ctx context.Context, d *models.Deposit) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DepositRepository) GetByID(ctx context.Context, id uint) (*models.Deposit, error) {
	var d models.Deposit
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepositRepository) LockByID(ctx context.Context, id uint) (*models.Deposit, error) {
	var d models.Deposit
	if err := forUpdate(r.db.WithContext(ctx)).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepositRepository) ExistsByTxHash(ctx context.Context, hash string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Deposit{}).Where("tx_hash = ?", hash).Count(&n).Error
	return n > 0, err
}

func (r *DepositRepository) ListByUserID(ctx context.Context, userID uint, limit, offset int) ([]models.Deposit, error) {
	var list []models.Deposit
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListPending returns the oldest pending deposits first.
func (r *DepositRepository) ListPending(ctx context.Context, limit int) ([]models.Deposit, error) {
	var list []models.Deposit
	err := r.db.WithContext(ctx).Where("status = ?", domain.DepositStatusPending).
		Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkChecked records one oracle attempt on a pending deposit.
func (r *DepositRepository) MarkChecked(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, domain.DepositStatusPending).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_checked_at": at,
		}).Error
}

// ExpireOlderThan flips PENDING deposits created before cutoff to EXPIRED.
func (r *DepositRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Deposit{}).
		Where("status = ? AND created_at < ?", domain.DepositStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status": domain.DepositStatusExpired,
			"reason": "not found on chain before expiry",
		})
	return res.RowsAffected, res.Error
}

func (r *DepositRepository) Update(ctx context.Context, d *models.Deposit) error {
	return r.db.WithContext(ctx).Save(d).Error
}
