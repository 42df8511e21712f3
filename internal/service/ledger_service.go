package service

import (
	"context"
	"fmt"

	"vipearn/internal/domain"
	"vipearn/internal/metrics"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Adjustment is one balance mutation. Amount is signed: credits are positive
// and debits negative.
type Adjustment struct {
	UserID      uint
	Amount      decimal.Decimal
	Type        string
	Description string
	ReferenceID string
}

// LedgerEntry is what a booked adjustment produced.
type LedgerEntry struct {
	Transaction  *models.Transaction
	Wallet       *models.Wallet
	FromEarnings decimal.Decimal
	FromReferral decimal.Decimal
	// Shortfall is the part of a withdrawal the balance could not cover.
	Shortfall decimal.Decimal
}

type direction int

const (
	credit direction = iota + 1
	debit
	either
)

type txPolicy struct {
	direction direction
	apply     func(w *models.Wallet, amount decimal.Decimal)
}

// policies maps a transaction type to the aggregates it moves besides the balance.
// WITHDRAWAL is handled separately because it clamps and splits across pools.
var policies = map[string]txPolicy{
	domain.TxTypeDeposit: {credit, func(w *models.Wallet, a decimal.Decimal) {
		w.TotalDeposits = w.TotalDeposits.Add(a)
	}},
	domain.TxTypeReferralBonus: {credit, func(w *models.Wallet, a decimal.Decimal) {
		w.TotalReferralBonus = w.TotalReferralBonus.Add(a)
	}},
	domain.TxTypeVipEarnings: {credit, func(w *models.Wallet, a decimal.Decimal) {
		w.TotalEarnings = w.TotalEarnings.Add(a)
		w.DailyEarnings = w.DailyEarnings.Add(a)
	}},
	domain.TxTypeWalletGrowth: {credit, func(w *models.Wallet, a decimal.Decimal) {
		w.TotalEarnings = w.TotalEarnings.Add(a)
	}},
	domain.TxTypeVipPayment:      {debit, nil},
	domain.TxTypeAdminAdjustment: {either, nil},
	domain.TxTypeWithdrawal:      {debit, nil},
}

// LedgerService is the only writer of wallet balances.
type LedgerService struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	txRepo     *repository.TransactionRepository
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        Clock
}

func NewLedgerService(db *gorm.DB, m *metrics.Metrics, log *zap.Logger) *LedgerService {
	return &LedgerService{
		db:         db,
		walletRepo: repository.NewWalletRepository(db),
		txRepo:     repository.NewTransactionRepository(db),
		metrics:    m,
		log:        log.Named("ledger"),
		now:        utcNow,
	}
}

// AdjustBalance books adj against the user's wallet. It joins tx when given,
// otherwise it runs in its own transaction. The wallet row is locked and
// re-read inside the transaction before any arithmetic.
func (s *LedgerService) AdjustBalance(ctx context.Context, tx *gorm.DB, adj Adjustment) (*LedgerEntry, error) {
	if tx == nil {
		var entry *LedgerEntry
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			entry, err = s.adjust(ctx, tx, adj)
			return err
		})
		if err != nil {
			return nil, err
		}
		return entry, nil
	}
	return s.adjust(ctx, tx, adj)
}

func (s *LedgerService) adjust(ctx context.Context, tx *gorm.DB, adj Adjustment) (*LedgerEntry, error) {
	policy, ok := policies[adj.Type]
	if !ok {
		return nil, domain.Validation("UNKNOWN_TX_TYPE", fmt.Sprintf("unknown transaction type %q", adj.Type))
	}
	amount := adj.Amount.Round(domain.MoneyPlaces)
	switch policy.direction {
	case credit:
		if !amount.IsPositive() {
			return nil, domain.ErrInvalidAmount
		}
	case debit:
		if !amount.IsNegative() {
			return nil, domain.Validation("INVALID_DEBIT", "debit amount must be negative")
		}
	case either:
		if amount.IsZero() {
			return nil, domain.ErrInvalidAmount
		}
	}

	txRepo := s.txRepo.WithTx(tx)
	if adj.ReferenceID != "" {
		exists, err := txRepo.ExistsForReference(ctx, adj.UserID, adj.Type, adj.ReferenceID)
		if err != nil {
			return nil, errors.Wrap(err, "check ledger reference")
		}
		if exists {
			return nil, domain.ErrDuplicateLedgerEntry
		}
	}

	wallets := s.walletRepo.WithTx(tx)
	w, err := wallets.LockForUpdate(ctx, adj.UserID)
	if err != nil {
		return nil, errors.Wrapf(err, "lock wallet of user %d", adj.UserID)
	}

	today := s.now().Format("2006-01-02")
	if w.DailyEarningsDate != today {
		w.DailyEarnings = decimal.Zero
		w.DailyEarningsDate = today
	}

	entry := &LedgerEntry{Wallet: w}
	booked := amount
	if adj.Type == domain.TxTypeWithdrawal {
		want := amount.Neg()
		if !w.Balance.IsPositive() {
			return nil, domain.ErrInsufficientBalance
		}
		if want.GreaterThan(w.Balance) {
			entry.Shortfall = want.Sub(w.Balance)
			booked = w.Balance.Neg()
			s.log.Warn("withdrawal exceeds balance, clamping to zero",
				zap.Uint("user-id", adj.UserID),
				zap.String("requested", want.String()),
				zap.String("shortfall", entry.Shortfall.String()))
		}
		// Pools shrink by what actually left the wallet, not by the request.
		entry.FromEarnings, entry.FromReferral = AllocateWithdrawal(booked.Neg(), w.TotalEarnings, w.TotalReferralBonus)
		w.TotalEarnings = w.TotalEarnings.Sub(entry.FromEarnings)
		w.TotalReferralBonus = w.TotalReferralBonus.Sub(entry.FromReferral)
		w.Balance = w.Balance.Add(booked)
	} else {
		next := w.Balance.Add(amount)
		if next.IsNegative() {
			return nil, domain.ErrBalanceWouldGoNegative
		}
		w.Balance = next
		if policy.apply != nil {
			policy.apply(w, amount)
		}
	}

	if err := wallets.Save(ctx, w); err != nil {
		return nil, errors.Wrap(err, "save wallet")
	}

	desc := adj.Description
	if entry.Shortfall.IsPositive() {
		desc = fmt.Sprintf("%s (shortfall %s absorbed)", desc, entry.Shortfall.String())
	}
	t := &models.Transaction{
		UserID:       adj.UserID,
		Type:         adj.Type,
		Amount:       booked,
		BalanceAfter: w.Balance,
		Description:  desc,
	}
	if adj.ReferenceID != "" {
		ref := adj.ReferenceID
		t.ReferenceID = &ref
	}
	if err := txRepo.Create(ctx, t); err != nil {
		return nil, errors.Wrap(err, "insert transaction")
	}
	entry.Transaction = t
	s.metrics.LedgerEntry(adj.Type)
	return entry, nil
}

// AllocateWithdrawal splits amount across the earnings and referral pools in
// proportion to their sizes. Each part is capped at its pool; empty pools
// allocate nothing and any remainder beyond both pools is not allocated.
func AllocateWithdrawal(amount, earningsPool, referralPool decimal.Decimal) (fromEarnings, fromReferral decimal.Decimal) {
	if earningsPool.IsNegative() {
		earningsPool = decimal.Zero
	}
	if referralPool.IsNegative() {
		referralPool = decimal.Zero
	}
	total := earningsPool.Add(referralPool)
	if !amount.IsPositive() || !total.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	if amount.GreaterThanOrEqual(total) {
		return earningsPool, referralPool
	}
	fromEarnings = amount.Mul(earningsPool).Div(total).Round(domain.MoneyPlaces)
	if fromEarnings.GreaterThan(earningsPool) {
		fromEarnings = earningsPool
	}
	fromReferral = amount.Sub(fromEarnings)
	if fromReferral.GreaterThan(referralPool) {
		fromReferral = referralPool
		fromEarnings = decimal.Min(amount.Sub(referralPool), earningsPool)
	}
	return fromEarnings, fromReferral
}

// Wallet returns the user's wallet, creating an empty one on first access.
func (s *LedgerService) Wallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, userID)
}

func (s *LedgerService) Transactions(ctx context.Context, userID uint, txType string, limit, offset int) ([]models.Transaction, error) {
	return s.txRepo.ListByUserID(ctx, userID, txType, limit, offset)
}

// ResetDailyEarnings zeroes yesterday's daily figures.
func (s *LedgerService) ResetDailyEarnings(ctx context.Context) (int64, error) {
	return s.walletRepo.ResetDailyEarnings(ctx, s.now().Format("2006-01-02"))
}
