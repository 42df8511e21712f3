package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the append-only audit record of a balance-affecting event.
// The (user_id, type, reference_id) index stops the same event being booked twice.
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"not null;index;uniqueIndex:idx_tx_event,priority:1" json:"user_id"`
	Type         string          `gorm:"size:30;not null;index;uniqueIndex:idx_tx_event,priority:2" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"` // positive = credit, negative = debit
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"`
	Description  string          `gorm:"size:255" json:"description"`
	ReferenceID  *string         `gorm:"size:128;uniqueIndex:idx_tx_event,priority:3" json:"reference_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
