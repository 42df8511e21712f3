package service

import (
	"testing"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustBalanceCreditsAndAggregates(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice", nil)

	entry, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("100"), Type: domain.TxTypeDeposit, ReferenceID: "deposit:1",
	})
	require.NoError(t, err)
	assertDec(t, "100", entry.Transaction.BalanceAfter)

	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("6.5"), Type: domain.TxTypeVipEarnings, ReferenceID: "session:1",
	})
	require.NoError(t, err)
	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("2"), Type: domain.TxTypeReferralBonus, ReferenceID: "vip:x",
	})
	require.NoError(t, err)
	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("-40"), Type: domain.TxTypeVipPayment, ReferenceID: "vip:y",
	})
	require.NoError(t, err)

	w := f.wallet(t, u.ID)
	assertDec(t, "68.5", w.Balance)
	assertDec(t, "100", w.TotalDeposits)
	assertDec(t, "6.5", w.TotalEarnings)
	assertDec(t, "6.5", w.DailyEarnings)
	assertDec(t, "2", w.TotalReferralBonus)
	assert.Equal(t, "2026-03-01", w.DailyEarningsDate)
	assertDec(t, w.Balance.String(), f.ledgerSum(t, u.ID))
}

func TestAdjustBalanceNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "bob", nil)
	f.fund(t, u.ID, "10")

	_, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("-10.00000001"), Type: domain.TxTypeVipPayment,
	})
	assert.ErrorIs(t, err, domain.ErrBalanceWouldGoNegative)

	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("-25"), Type: domain.TxTypeAdminAdjustment,
	})
	assert.ErrorIs(t, err, domain.ErrBalanceWouldGoNegative)

	w := f.wallet(t, u.ID)
	assertDec(t, "10", w.Balance)
	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestAdjustBalanceRejectsWrongDirection(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "carol", nil)

	_, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("-1"), Type: domain.TxTypeDeposit})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("1"), Type: domain.TxTypeVipPayment})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: decimal.Zero, Type: domain.TxTypeAdminAdjustment})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("1"), Type: "BOGUS"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestAdjustBalanceReferenceIsPerUser(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "dave", nil)
	b := f.user(t, "erin", nil)

	adj := Adjustment{UserID: a.ID, Amount: dec("1"), Type: domain.TxTypeReferralBonus, ReferenceID: "vip:shared"}
	_, err := f.ledger.AdjustBalance(ctx(), nil, adj)
	require.NoError(t, err)

	_, err = f.ledger.AdjustBalance(ctx(), nil, adj)
	assert.ErrorIs(t, err, domain.ErrDuplicateLedgerEntry)

	adj.UserID = b.ID
	_, err = f.ledger.AdjustBalance(ctx(), nil, adj)
	require.NoError(t, err)

	assertDec(t, "1", f.wallet(t, a.ID).Balance)
	assertDec(t, "1", f.wallet(t, b.ID).Balance)
}

func TestWithdrawalClampsToBalance(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "frank", nil)
	_, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("30"), Type: domain.TxTypeVipEarnings})
	require.NoError(t, err)
	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("20"), Type: domain.TxTypeReferralBonus})
	require.NoError(t, err)

	entry, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("-80"), Type: domain.TxTypeWithdrawal, ReferenceID: "withdrawal:1",
	})
	require.NoError(t, err)
	assertDec(t, "30", entry.FromEarnings)
	assertDec(t, "20", entry.FromReferral)
	assertDec(t, "30", entry.Shortfall)
	assertDec(t, "-50", entry.Transaction.Amount)
	assert.Contains(t, entry.Transaction.Description, "shortfall")

	w := f.wallet(t, u.ID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.TotalEarnings.IsZero())
	assert.True(t, w.TotalReferralBonus.IsZero())
	assert.True(t, f.ledgerSum(t, u.ID).IsZero())
}

func TestWithdrawalShrinksPoolsByBookedAmount(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "hana", nil)
	_, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("10"), Type: domain.TxTypeWalletGrowth})
	require.NoError(t, err)
	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("-6"), Type: domain.TxTypeVipPayment})
	require.NoError(t, err)

	entry, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("-10"), Type: domain.TxTypeWithdrawal, ReferenceID: "withdrawal:1",
	})
	require.NoError(t, err)
	assertDec(t, "-4", entry.Transaction.Amount)
	assertDec(t, "6", entry.Shortfall)
	assertDec(t, "4", entry.FromEarnings)
	assert.True(t, entry.FromReferral.IsZero())
	assertDec(t, "6", f.wallet(t, u.ID).TotalEarnings)

	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: u.ID, Amount: dec("-5"), Type: domain.TxTypeWithdrawal, ReferenceID: "withdrawal:2",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var rows int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", u.ID, domain.TxTypeWithdrawal).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assertDec(t, "6", f.wallet(t, u.ID).TotalEarnings)
}

func TestAllocateWithdrawal(t *testing.T) {
	cases := []struct {
		name              string
		amount, earn, ref string
		wantEarn, wantRef string
	}{
		{"proportional", "50", "60", "40", "30", "20"},
		{"earnings only", "10", "25", "0", "10", "0"},
		{"referral only", "10", "0", "25", "0", "10"},
		{"exceeds pools", "100", "30", "20", "30", "20"},
		{"empty pools", "10", "0", "0", "0", "0"},
		{"zero amount", "0", "10", "10", "0", "0"},
		{"negative pool ignored", "5", "-3", "10", "0", "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, r := AllocateWithdrawal(dec(tc.amount), dec(tc.earn), dec(tc.ref))
			assertDec(t, tc.wantEarn, e)
			assertDec(t, tc.wantRef, r)
		})
	}
}

func TestDailyEarningsRollOver(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "gina", nil)
	_, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("5"), Type: domain.TxTypeVipEarnings})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.ledger.AdjustBalance(ctx(), nil, Adjustment{UserID: u.ID, Amount: dec("3"), Type: domain.TxTypeVipEarnings})
	require.NoError(t, err)
	w := f.wallet(t, u.ID)
	assertDec(t, "3", w.DailyEarnings)
	assertDec(t, "8", w.TotalEarnings)

	f.clock.Advance(24 * time.Hour)
	n, err := f.ledger.ResetDailyEarnings(ctx())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	w = f.wallet(t, u.ID)
	assert.True(t, w.DailyEarnings.IsZero())
	assert.Equal(t, "2026-03-03", w.DailyEarningsDate)
}
