package service

import (
	"testing"

	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/testdb"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPurchaseAndUpgradeChargesDifference(t *testing.T) {
	f := newFixture(t)
	silver := testdb.Level(t, f.db, "VIP1", "180", "6", 1)
	gold := testdb.Level(t, f.db, "VIP2", "400", "14", 2)
	ref := f.user(t, "ref", nil)
	u := f.user(t, "buyer", ref)
	f.fund(t, u.ID, "500")

	res, err := f.vip.Purchase(ctx(), u.ID, silver.ID)
	require.NoError(t, err)
	assert.False(t, res.IsUpgrade)
	assertDec(t, "180", res.Charge)
	assertDec(t, "180", res.Membership.TotalPaid)
	require.Len(t, res.Bonuses, 1)
	assertDec(t, "18", res.Bonuses[0].Amount)

	q, err := f.vip.Quote(ctx(), u.ID, gold.ID)
	require.NoError(t, err)
	assert.True(t, q.IsUpgrade)
	assertDec(t, "220", q.Charge)

	res, err = f.vip.Purchase(ctx(), u.ID, gold.ID)
	require.NoError(t, err)
	assert.True(t, res.IsUpgrade)
	assertDec(t, "220", res.Charge)
	assertDec(t, "400", res.Membership.TotalPaid)
	assert.NotNil(t, res.Membership.UpgradedAt)
	assertDec(t, "-220", res.Transaction.Amount)

	assertDec(t, "100", f.wallet(t, u.ID).Balance)
	assertDec(t, "40", f.wallet(t, ref.ID).Balance)

	cur, err := f.vip.Current(ctx(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, gold.ID, cur.VipLevelID)
	assert.Len(t, f.notes.ByTemplate(domain.TemplateVipPurchased), 2)
}

func TestPurchaseRejectsDowngradeAndSameTier(t *testing.T) {
	f := newFixture(t)
	silver := testdb.Level(t, f.db, "VIP1", "180", "6", 1)
	gold := testdb.Level(t, f.db, "VIP2", "400", "14", 2)
	u := f.user(t, "buyer", nil)
	f.fund(t, u.ID, "1000")

	_, err := f.vip.Purchase(ctx(), u.ID, gold.ID)
	require.NoError(t, err)

	_, err = f.vip.Purchase(ctx(), u.ID, silver.ID)
	assert.ErrorIs(t, err, domain.ErrDowngradeNotAllowed)
	_, err = f.vip.Purchase(ctx(), u.ID, gold.ID)
	assert.ErrorIs(t, err, domain.ErrDowngradeNotAllowed)
	_, err = f.vip.Quote(ctx(), u.ID, silver.ID)
	assert.ErrorIs(t, err, domain.ErrDowngradeNotAllowed)

	assertDec(t, "600", f.wallet(t, u.ID).Balance)
}

func TestPurchaseFailures(t *testing.T) {
	f := newFixture(t)
	gold := testdb.Level(t, f.db, "VIP2", "400", "14", 2)
	u := f.user(t, "poor", nil)
	f.fund(t, u.ID, "399.99")

	_, err := f.vip.Purchase(ctx(), u.ID, gold.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, err = f.vip.Purchase(ctx(), u.ID, 9999)
	assert.ErrorIs(t, err, domain.ErrVipLevelNotFound)
	_, err = f.vip.Current(ctx(), u.ID)
	assert.ErrorIs(t, err, domain.ErrNoActiveVip)

	assertDec(t, "399.99", f.wallet(t, u.ID).Balance)
	assert.Empty(t, f.notes.ByTemplate(domain.TemplateVipPurchased))
}

func TestListLevels(t *testing.T) {
	f := newFixture(t)
	testdb.Level(t, f.db, "VIP2", "400", "14", 2)
	testdb.Level(t, f.db, "VIP1", "180", "6", 1)

	levels, err := f.vip.ListLevels(ctx())
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "VIP1", levels[0].Name)
}

func TestPurchasePaysTwoLevelChain(t *testing.T) {
	f := newFixture(t)
	level := testdb.Level(t, f.db, "VIP5", "1000", "40", 5)
	a := f.user(t, "a", nil)
	b := f.user(t, "b", a)
	c := f.user(t, "c", b)
	f.fund(t, c.ID, "1000")

	res, err := f.vip.Purchase(ctx(), c.ID, level.ID)
	require.NoError(t, err)
	require.Len(t, res.Bonuses, 2)

	assertDec(t, "100", f.wallet(t, b.ID).Balance)
	assertDec(t, "50", f.wallet(t, a.ID).Balance)
	assert.True(t, f.wallet(t, c.ID).Balance.IsZero())

	var bonusRows, bonusTxs int64
	require.NoError(t, f.db.Model(&models.ReferralBonus{}).Count(&bonusRows).Error)
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("type = ?", domain.TxTypeReferralBonus).Count(&bonusTxs).Error)
	assert.Equal(t, int64(2), bonusRows)
	assert.Equal(t, int64(2), bonusTxs)
}

func TestPurchaseSurvivesReferralBonusFailure(t *testing.T) {
	f := newFixture(t)
	level := testdb.Level(t, f.db, "VIP5", "1000", "40", 5)
	a := f.user(t, "a", nil)
	b := f.user(t, "b", a)
	c := f.user(t, "c", b)
	f.fund(t, c.ID, "1000")

	// The level-2 bonus row cannot be written, so the walk fails at a.
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:reject_bonus", func(db *gorm.DB) {
		if row, ok := db.Statement.Dest.(*models.ReferralBonus); ok && row.ReferrerID == a.ID {
			_ = db.AddError(errors.New("bonus store unavailable"))
		}
	}))

	res, err := f.vip.Purchase(ctx(), c.ID, level.ID)
	require.NoError(t, err)
	assertDec(t, "1000", res.Charge)
	require.Len(t, res.Bonuses, 1)
	assert.Equal(t, b.ID, res.Bonuses[0].ReferrerID)

	cur, err := f.vip.Current(ctx(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, level.ID, cur.VipLevelID)
	assert.True(t, f.wallet(t, c.ID).Balance.IsZero())
	assertDec(t, "100", f.wallet(t, b.ID).Balance)
	assert.True(t, f.wallet(t, a.ID).Balance.IsZero())

	var bonusTxs int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", a.ID, domain.TxTypeReferralBonus).Count(&bonusTxs).Error)
	assert.Zero(t, bonusTxs)
	assert.Len(t, f.notes.ByTemplate(domain.TemplateVipPurchased), 1)
}
