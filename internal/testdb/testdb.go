// Package testdb opens throwaway sqlite databases for package tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"vipearn/config"
	"vipearn/internal/database"
	"vipearn/internal/domain"
	"vipearn/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var seq atomic.Int64

// New returns a migrated in-memory database private to the test. A single
// connection keeps the in-memory schema alive and serialises writers.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// User inserts an active user with a unique referral code.
func User(t testing.TB, db *gorm.DB, name string, referredBy *uint) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Username:     name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         domain.RoleUser,
		ReferralCode: fmt.Sprintf("c%07d", n),
		ReferredBy:   referredBy,
		IsActive:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Level inserts an active VIP tier.
func Level(t testing.TB, db *gorm.DB, name string, price, daily string, order int) *models.VipLevel {
	t.Helper()
	l := &models.VipLevel{
		Name:         name,
		Amount:       decimal.RequireFromString(price),
		DailyEarning: decimal.RequireFromString(daily),
		SortOrder:    order,
		IsActive:     true,
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
