package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningsSession is one earning cycle. DailyEarningRate is snapshotted at
// start and is what gets credited on completion.
type EarningsSession struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	VipLevelID       uint            `gorm:"not null" json:"vip_level_id"`
	Surface          string          `gorm:"size:10;not null" json:"surface"` // task | vip
	StartTime        time.Time       `gorm:"not null" json:"start_time"`
	ExpectedEndTime  time.Time       `gorm:"not null;index" json:"expected_end_time"`
	ActualEndTime    *time.Time      `json:"actual_end_time,omitempty"`
	Status           string          `gorm:"size:20;not null;index" json:"status"` // ACTIVE, COMPLETED
	DailyEarningRate decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"daily_earning_rate"`
	TotalEarnings    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_earnings"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (EarningsSession) TableName() string { return "earnings_sessions" }

// Duration is the planned length of the session.
func (s *EarningsSession) Duration() time.Duration {
	return s.ExpectedEndTime.Sub(s.StartTime)
}
