package repository

import (
	"context"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers          int64           `json:"total_users"`
	ActiveVipMembers    int64           `json:"active_vip_members"`
	ActiveSessions      int64           `json:"active_sessions"`
	PendingDeposits     int64           `json:"pending_deposits"`
	PendingWithdrawals  int64           `json:"pending_withdrawals"`
	TotalReferralBonus  int64           `json:"total_referral_bonuses"`
	ConfirmedDeposits   decimal.Decimal `json:"confirmed_deposits"`
	CompletedWithdrawal decimal.Decimal `json:"completed_withdrawals"`
	VipRevenue          decimal.Decimal `json:"vip_revenue"`
	BalanceLiability    decimal.Decimal `json:"balance_liability"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// AdminRepository serves the read-only admin dashboard queries.
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := r.db.WithContext(ctx)
	var s DashboardStats
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&s.TotalUsers, db.Model(&models.User{})},
		{&s.ActiveVipMembers, db.Model(&models.UserVip{}).Where("is_active = ?", true)},
		{&s.ActiveSessions, db.Model(&models.EarningsSession{}).Where("status = ?", domain.SessionStatusActive)},
		{&s.PendingDeposits, db.Model(&models.Deposit{}).Where("status = ?", domain.DepositStatusPending)},
		{&s.PendingWithdrawals, db.Model(&models.Withdrawal{}).Where("status = ?", domain.WithdrawalStatusPending)},
		{&s.TotalReferralBonus, db.Model(&models.ReferralBonus{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var err error
	if s.ConfirmedDeposits, err = sumColumn(db.Model(&models.Deposit{}).Where("status = ?", domain.DepositStatusConfirmed), "amount"); err != nil {
		return nil, err
	}
	if s.CompletedWithdrawal, err = sumColumn(db.Model(&models.Withdrawal{}).Where("status = ?", domain.WithdrawalStatusCompleted), "amount"); err != nil {
		return nil, err
	}
	if s.VipRevenue, err = sumColumn(db.Model(&models.Transaction{}).Where("type = ?", domain.TxTypeVipPayment), "amount"); err != nil {
		return nil, err
	}
	s.VipRevenue = s.VipRevenue.Neg()
	if s.BalanceLiability, err = sumColumn(db.Model(&models.Wallet{}), "balance"); err != nil {
		return nil, err
	}
	return &s, nil
}

// sumColumn adds the column up in Go so decimal precision survives every driver.
func sumColumn(q *gorm.DB, column string) (decimal.Decimal, error) {
	var values []decimal.Decimal
	if err := q.Pluck(column, &values).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total, nil
}

// ListUsers returns users with search and pagination.
func (r *AdminRepository) ListUsers(ctx context.Context, search string, page, limit int) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if search != "" {
		q = q.Where("username LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error
	return users, total, err
}

// ListTransactions returns ledger rows across all users with an optional type filter.
func (r *AdminRepository) ListTransactions(ctx context.Context, txType string, page, limit int) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := q.Order("id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// UserSignupsByDay returns daily signup counts for the last N days.
func (r *AdminRepository) UserSignupsByDay(ctx context.Context, days int) ([]TimeSeriesPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	var points []TimeSeriesPoint
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
