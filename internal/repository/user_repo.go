package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"vipearn/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// GenerateReferralCode returns an 8-character hex referral code.
func GenerateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil // 8 hex chars, e.g. "a3f2c1b0"
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("referral_code = ? AND is_active = ?", code, true).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetReferrer updates the weak referral pointer.
func (r *UserRepository) SetReferrer(ctx context.Context, userID uint, referrerID *uint) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("referred_by", referrerID).Error
}

func (r *UserRepository) CountReferredBy(ctx context.Context, referrerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("referred_by = ?", referrerID).Count(&n).Error
	return n, err
}

func (r *UserRepository) ListReferredBy(ctx context.Context, referrerID uint, limit, offset int) ([]models.User, error) {
	var list []models.User
	err := r.db.WithContext(ctx).Where("referred_by = ?", referrerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *UserRepository) UpdateFields(ctx context.Context, userID uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields).Error
}

// GetByIDUnscoped includes soft-deleted users; the referral walk passes through them.
func (r *UserRepository) GetByIDUnscoped(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Unscoped().First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}
