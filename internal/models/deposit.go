package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Deposit struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	TxHash        string          `gorm:"size:100;uniqueIndex;not null" json:"tx_hash"`
	Network       string          `gorm:"size:20" json:"network"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"amount"`
	Sender        string          `gorm:"size:64" json:"sender"`
	Recipient     string          `gorm:"size:64" json:"recipient"`
	BlockNumber   uint64          `json:"block_number"`
	ProofURL      string          `gorm:"size:512" json:"proof_url"`
	Status        string          `gorm:"size:20;not null;index" json:"status"` // PENDING, CONFIRMED, REJECTED, EXPIRED
	Reason        string          `gorm:"size:255" json:"reason,omitempty"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	LastCheckedAt *time.Time      `json:"last_checked_at,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Deposit) TableName() string {
	return "deposits"
}
