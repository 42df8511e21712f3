package repository

import (
	"context"

	"vipearn/internal/models"

	"gorm.io/gorm"
)

type VipRepository struct {
	db *gorm.DB
}

func NewVipRepository(db *gorm.DB) *VipRepository {
	return &VipRepository{db: db}
}

func (r *VipRepository) WithTx(tx *gorm.DB) *VipRepository {
	return &VipRepository{db: tx}
}

func (r *VipRepository) ListActiveLevels(ctx context.Context) ([]models.VipLevel, error) {
	var list []models.VipLevel
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("sort_order ASC, amount ASC").Find(&list).Error
	return list, err
}

func (r *VipRepository) GetLevel(ctx context.Context, id uint) (*models.VipLevel, error) {
	var l models.VipLevel
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *VipRepository) CreateLevel(ctx context.Context, l *models.VipLevel) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// GetActiveMembership returns the user's active membership with its level loaded.
func (r *VipRepository) GetActiveMembership(ctx context.Context, userID uint) (*models.UserVip, error) {
	var uv models.UserVip
	err := r.db.WithContext(ctx).Preload("VipLevel").
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&uv).Error
	if err != nil {
		return nil, err
	}
	return &uv, nil
}

// LockMembership loads the user's membership row (active or not) under a row lock.
func (r *VipRepository) LockMembership(ctx context.Context, userID uint) (*models.UserVip, error) {
	var uv models.UserVip
	if err := forUpdate(r.db.WithContext(ctx)).Preload("VipLevel").Where("user_id = ?", userID).First(&uv).Error; err != nil {
		return nil, err
	}
	return &uv, nil
}

func (r *VipRepository) SaveMembership(ctx context.Context, uv *models.UserVip) error {
	return r.db.WithContext(ctx).Omit("VipLevel").Save(uv).Error
}

func (r *VipRepository) CountActiveMemberships(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserVip{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
