package repository

import (
	"context"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.EarningsSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SessionRepository) GetByID(ctx context.Context, id uint) (*models.EarningsSession, error) {
	var s models.EarningsSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) LockByID(ctx context.Context, id uint) (*models.EarningsSession, error) {
	var s models.EarningsSession
	if err := forUpdate(r.db.WithContext(ctx)).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActive returns the user's ACTIVE session, whatever its surface.
func (r *SessionRepository) GetActive(ctx context.Context, userID uint) (*models.EarningsSession, error) {
	var s models.EarningsSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.SessionStatusActive).
		Order("id DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLastCompleted returns the user's most recently finished session.
func (r *SessionRepository) GetLastCompleted(ctx context.Context, userID uint) (*models.EarningsSession, error) {
	var s models.EarningsSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND actual_end_time IS NOT NULL", userID, domain.SessionStatusCompleted).
		Order("actual_end_time DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListDue returns ACTIVE sessions whose expected end is at or before now.
func (r *SessionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.EarningsSession, error) {
	var list []models.EarningsSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND expected_end_time <= ?", domain.SessionStatusActive, now).
		Order("expected_end_time ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListActive returns every ACTIVE session; used to re-arm timers on boot.
func (r *SessionRepository) ListActive(ctx context.Context) ([]models.EarningsSession, error) {
	var list []models.EarningsSession
	err := r.db.WithContext(ctx).Where("status = ?", domain.SessionStatusActive).Find(&list).Error
	return list, err
}

func (r *SessionRepository) ListByUserID(ctx context.Context, userID uint, surface string, limit, offset int) ([]models.EarningsSession, error) {
	var list []models.EarningsSession
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if surface != "" {
		q = q.Where("surface = ?", surface)
	}
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *SessionRepository) Update(ctx context.Context, s *models.EarningsSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}
