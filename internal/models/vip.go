package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VipLevel is a catalog tier. Amount is the entry price, DailyEarning the
// amount a completed session pays.
type VipLevel struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"size:64;not null" json:"name"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	DailyEarning decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"daily_earning"`
	Description  string          `gorm:"size:512" json:"description"`
	SortOrder    int             `gorm:"not null;default:0" json:"sort_order"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (VipLevel) TableName() string { return "vip_levels" }

// UserVip is the single membership row of a user; upgrades update it in place.
type UserVip struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	VipLevelID  uint            `gorm:"not null;index" json:"vip_level_id"`
	TotalPaid   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_paid"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	PurchasedAt time.Time       `json:"purchased_at"`
	UpgradedAt  *time.Time      `json:"upgraded_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	VipLevel *VipLevel `gorm:"foreignKey:VipLevelID" json:"vip_level,omitempty"`
}

func (UserVip) TableName() string { return "user_vips" }
