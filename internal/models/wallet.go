package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a user's balance and running aggregates. It is only mutated
// through the ledger so every change has a matching Transaction row.
type Wallet struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance            decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	TotalDeposits      decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_deposits"`
	TotalEarnings      decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_earnings"`
	TotalReferralBonus decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_referral_bonus"`
	DailyEarnings      decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"daily_earnings"`
	DailyEarningsDate  string          `gorm:"size:10" json:"daily_earnings_date"` // YYYY-MM-DD (UTC) the daily figure belongs to
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
