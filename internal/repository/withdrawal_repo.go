package repository

import (
	"context"

	"vipearn/internal/domain"
	"vipearn/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// LockByID loads the withdrawal and locks its row for the surrounding transaction.
func (r *WithdrawalRepository) LockByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := forUpdate(r.db.WithContext(ctx)).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) HasPending(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("user_id = ? AND status = ?", userID, domain.WithdrawalStatusPending).
		Count(&n).Error
	return n > 0, err
}

func (r *WithdrawalRepository) ListByUserID(ctx context.Context, userID uint, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *WithdrawalRepository) Update(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Save(w).Error
}
