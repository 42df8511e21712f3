package repository_test

import (
	"context"
	"testing"

	"vipearn/internal/domain"
	"vipearn/internal/repository"
	"vipearn/internal/testdb"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingDecimal(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSettingRepository(testdb.New(t))
	fallback := decimal.RequireFromString("0.10")

	got, err := repo.Decimal(ctx, domain.SettingReferralRateLevel1, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(fallback))

	require.NoError(t, repo.Set(ctx, domain.SettingReferralRateLevel1, "0.25"))
	got, err = repo.Decimal(ctx, domain.SettingReferralRateLevel1, fallback)
	require.NoError(t, err)
	assert.Equal(t, "0.25", got.String())

	for _, bad := range []string{"bogus", "-1"} {
		require.NoError(t, repo.Set(ctx, domain.SettingReferralRateLevel1, bad))
		got, err = repo.Decimal(ctx, domain.SettingReferralRateLevel1, fallback)
		assert.Error(t, err, bad)
		assert.True(t, got.Equal(fallback), bad)
	}
}

func TestSeedDefaultsKeepsExistingValues(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSettingRepository(testdb.New(t))
	require.NoError(t, repo.Set(ctx, domain.SettingMinDeposit, "25"))

	require.NoError(t, repo.SeedDefaults(ctx, map[string]string{
		domain.SettingMinDeposit:    "10",
		domain.SettingMinWithdrawal: "5",
	}))
	require.NoError(t, repo.SeedDefaults(ctx, map[string]string{domain.SettingMinWithdrawal: "7"}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	values := map[string]string{}
	for _, s := range list {
		values[s.Key] = s.Value
	}
	assert.Equal(t, map[string]string{domain.SettingMinDeposit: "25", domain.SettingMinWithdrawal: "5"}, values)
}
