package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Withdrawal struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"not null;index" json:"user_id"`
	OrderID      string          `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Address      string          `gorm:"size:64;not null" json:"address"`
	Network      string          `gorm:"size:20;not null" json:"network"`
	Status       string          `gorm:"size:20;not null;index" json:"status"` // PENDING, COMPLETED, REJECTED
	FromEarnings decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"from_earnings"`
	FromReferral decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"from_referral"`
	Shortfall    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"shortfall"` // absorbed by the platform
	TxHash       string          `gorm:"size:100" json:"tx_hash,omitempty"`
	Reason       string          `gorm:"size:255" json:"reason,omitempty"`
	ProcessedBy  *uint           `json:"processed_by,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
