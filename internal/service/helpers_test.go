package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/testdb"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var dec = testdb.Dec

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentNote struct {
	UserID   uint
	Template string
	Data     map[string]interface{}
}

// recordingNotifier captures Send calls.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (n *recordingNotifier) Send(userID uint, template string, data map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNote{userID, template, data})
}

func (n *recordingNotifier) ByTemplate(template string) []sentNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNote
	for _, s := range n.sent {
		if s.Template == template {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    *fakeClock
	notes    *recordingNotifier
	ledger   *LedgerService
	referral *ReferralService
	vip      *VipService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:    testdb.New(t),
		log:   zaptest.NewLogger(t),
		clock: newFakeClock(),
		notes: &recordingNotifier{},
	}
	f.ledger = NewLedgerService(f.db, nil, f.log)
	f.ledger.SetClock(f.clock.Now)
	f.referral = NewReferralService(f.db, f.ledger, f.notes, nil, f.log)
	f.vip = NewVipService(f.db, f.ledger, f.referral, f.notes, f.log)
	f.vip.SetClock(f.clock.Now)
	return f
}

func (f *fixture) user(t *testing.T, name string, referredBy *models.User) *models.User {
	t.Helper()
	var ref *uint
	if referredBy != nil {
		id := referredBy.ID
		ref = &id
	}
	return testdb.User(t, f.db, name, ref)
}

// fund credits the user through the ledger so aggregates stay consistent.
func (f *fixture) fund(t *testing.T, userID uint, amount string) {
	t.Helper()
	_, err := f.ledger.AdjustBalance(ctx(), nil, Adjustment{
		UserID: userID, Amount: dec(amount), Type: domain.TxTypeDeposit, Description: "test funding",
	})
	require.NoError(t, err)
}

func (f *fixture) wallet(t *testing.T, userID uint) *models.Wallet {
	t.Helper()
	w, err := f.ledger.Wallet(ctx(), userID)
	require.NoError(t, err)
	return w
}

// ledgerSum adds up every transaction amount of the user.
func (f *fixture) ledgerSum(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	var txs []models.Transaction
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&txs).Error)
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum
}

func ctx() context.Context { return context.Background() }
