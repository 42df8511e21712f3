package repository

import (
	"context"

	"vipearn/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ExistsForReference reports whether the user already has a transaction of
// the given type for the originating entity. One referral event books a row
// per ancestor under the same reference, so the user is part of the key.
func (r *TransactionRepository) ExistsForReference(ctx context.Context, userID uint, txType, referenceID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND reference_id = ?", userID, txType, referenceID).
		Count(&n).Error
	return n > 0, err
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID uint, txType string, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *TransactionRepository) CountByType(ctx context.Context, userID uint, txType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", userID, txType).
		Count(&n).Error
	return n, err
}
