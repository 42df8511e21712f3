package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralBonus records one computed commission credited to an ancestor.
// A (referred, referrer, level, source) tuple is only ever paid once.
type ReferralBonus struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ReferrerID   uint            `gorm:"not null;index;uniqueIndex:idx_bonus_event,priority:2" json:"referrer_id"`
	ReferredID   uint            `gorm:"not null;index;uniqueIndex:idx_bonus_event,priority:1" json:"referred_id"`
	Level        int             `gorm:"not null;uniqueIndex:idx_bonus_event,priority:3" json:"level"`
	BonusAmount  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"bonus_amount"`
	BonusRate    decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"bonus_rate"`
	SourceAmount decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"source_amount"`
	SourceRef    string          `gorm:"size:128;not null;uniqueIndex:idx_bonus_event,priority:4" json:"source_ref"`
	DepositID    *uint           `json:"deposit_id,omitempty"`
	VipLevelID   *uint           `json:"vip_level_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (ReferralBonus) TableName() string { return "referral_bonuses" }
