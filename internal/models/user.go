package models

import (
	"time"

	"vipearn/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email          string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash   string         `gorm:"size:255" json:"-"`
	Role           string         `gorm:"size:20;not null;index;default:'USER'" json:"role"` // USER | ADMIN
	ReferralCode   string         `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`
	ReferredBy     *uint          `gorm:"index" json:"referred_by,omitempty"` // weak reference to the referrer
	IsActive       bool           `gorm:"not null;default:true" json:"is_active"`
	FCMToken       string         `gorm:"size:512" json:"-"`
	TelegramChatID *int64         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
