package service

import (
	"testing"

	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds top <- l3 <- l2 <- l1 <- payer, so payer's three nearest
// ancestors are l1, l2 and l3 and top sits beyond the last paid level.
func chain(t *testing.T, f *fixture) (payer, l1, l2, l3, top *models.User) {
	top = f.user(t, "top", nil)
	l3 = f.user(t, "l3", top)
	l2 = f.user(t, "l2", l3)
	l1 = f.user(t, "l1", l2)
	payer = f.user(t, "payer", l1)
	return
}

func TestProcessMultiLevelBonusPaysThreeLevels(t *testing.T) {
	f := newFixture(t)
	payer, l1, l2, l3, top := chain(t, f)

	res, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("100"), BonusSource{Ref: "vip:abc"})
	require.NoError(t, err)
	require.Len(t, res, 3)

	for i, want := range []struct {
		user   *models.User
		amount string
	}{{l1, "10"}, {l2, "5"}, {l3, "2"}} {
		assert.Equal(t, i+1, res[i].Level)
		assert.Equal(t, want.user.ID, res[i].ReferrerID)
		assertDec(t, want.amount, res[i].Amount)
		w := f.wallet(t, want.user.ID)
		assertDec(t, want.amount, w.Balance)
		assertDec(t, want.amount, w.TotalReferralBonus)
	}
	assert.True(t, f.wallet(t, top.ID).Balance.IsZero())
	assert.Len(t, f.notes.ByTemplate(domain.TemplateReferralBonus), 3)

	var bonuses []models.ReferralBonus
	require.NoError(t, f.db.Order("level").Find(&bonuses).Error)
	require.Len(t, bonuses, 3)
	for _, b := range bonuses {
		assert.Equal(t, payer.ID, b.ReferredID)
		assert.Equal(t, "vip:abc", b.SourceRef)
	}
}

func TestProcessMultiLevelBonusIsIdempotentPerSource(t *testing.T) {
	f := newFixture(t)
	payer, l1, _, _, _ := chain(t, f)

	_, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("100"), BonusSource{Ref: "vip:once"})
	require.NoError(t, err)
	res, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("100"), BonusSource{Ref: "vip:once"})
	require.NoError(t, err)
	assert.Empty(t, res)
	assertDec(t, "10", f.wallet(t, l1.ID).Balance)

	res, err = f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("50"), BonusSource{Ref: "vip:twice"})
	require.NoError(t, err)
	assert.Len(t, res, 3)
	assertDec(t, "15", f.wallet(t, l1.ID).Balance)
}

func TestProcessMultiLevelBonusSkipsInactiveAncestor(t *testing.T) {
	f := newFixture(t)
	payer, l1, l2, l3, _ := chain(t, f)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", l2.ID).Update("is_active", false).Error)

	res, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("200"), BonusSource{Ref: "vip:skip"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Level)
	assert.Equal(t, 3, res[1].Level)
	assertDec(t, "20", f.wallet(t, l1.ID).Balance)
	assert.True(t, f.wallet(t, l2.ID).Balance.IsZero())
	assertDec(t, "4", f.wallet(t, l3.ID).Balance)
}

func TestProcessMultiLevelBonusUsesConfiguredRates(t *testing.T) {
	f := newFixture(t)
	payer, l1, l2, _, _ := chain(t, f)
	settings := repository.NewSettingRepository(f.db)
	require.NoError(t, settings.Set(ctx(), domain.SettingReferralRateLevel1, "0.2"))
	require.NoError(t, settings.Set(ctx(), domain.SettingReferralRateLevel2, "bogus"))

	_, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("100"), BonusSource{Ref: "vip:rates"})
	require.NoError(t, err)
	assertDec(t, "20", f.wallet(t, l1.ID).Balance)
	assertDec(t, "5", f.wallet(t, l2.ID).Balance)
}

func TestProcessMultiLevelBonusNoReferrer(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "loner", nil)

	res, err := f.referral.ProcessMultiLevelBonus(ctx(), u.ID, dec("100"), BonusSource{Ref: "vip:none"})
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = f.referral.ProcessMultiLevelBonus(ctx(), u.ID, dec("0"), BonusSource{Ref: "vip:none"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.referral.ProcessMultiLevelBonus(ctx(), u.ID, dec("1"), BonusSource{})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestProcessMultiLevelBonusStopsOnStoredCycle(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a", nil)
	b := f.user(t, "b", a)
	// Written directly to bypass the assignment guard.
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", a.ID).Update("referred_by", b.ID).Error)
	payer := f.user(t, "p", a)

	res, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("100"), BonusSource{Ref: "vip:loop"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assertDec(t, "10", f.wallet(t, a.ID).Balance)
	assertDec(t, "5", f.wallet(t, b.ID).Balance)
}

func TestAssignReferrer(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a", nil)
	b := f.user(t, "b", a)
	c := f.user(t, "c", b)
	d := f.user(t, "d", nil)

	assert.ErrorIs(t, f.referral.AssignReferrer(ctx(), a.ID, a.ID), domain.ErrSelfReferral)
	assert.ErrorIs(t, f.referral.AssignReferrer(ctx(), a.ID, c.ID), domain.ErrReferralCycle)
	assert.ErrorIs(t, f.referral.AssignReferrer(ctx(), 9999, a.ID), domain.ErrUserNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(f.referral.AssignReferrer(ctx(), d.ID, 9999)))

	require.NoError(t, f.referral.AssignReferrer(ctx(), d.ID, c.ID))
	var got models.User
	require.NoError(t, f.db.First(&got, d.ID).Error)
	require.NotNil(t, got.ReferredBy)
	assert.Equal(t, c.ID, *got.ReferredBy)

	require.NoError(t, f.referral.AssignByCode(ctx(), d.ID, ""))
	err := f.referral.AssignByCode(ctx(), d.ID, "nope")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestReferralSummary(t *testing.T) {
	f := newFixture(t)
	payer, l1, _, _, _ := chain(t, f)
	_, err := f.referral.ProcessMultiLevelBonus(ctx(), payer.ID, dec("100"), BonusSource{Ref: "vip:sum"})
	require.NoError(t, err)

	sum, err := f.referral.Summary(ctx(), l1.ID)
	require.NoError(t, err)
	assert.Equal(t, l1.ReferralCode, sum.ReferralCode)
	assert.Equal(t, int64(1), sum.DirectCount)
	assertDec(t, "10", sum.TotalEarned)
	require.Len(t, sum.DirectUsers, 1)
	assert.Equal(t, payer.ID, sum.DirectUsers[0].ID)
	assert.Len(t, sum.RecentBonuses, 1)
}
