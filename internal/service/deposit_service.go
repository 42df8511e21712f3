package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/metrics"
	"vipearn/internal/models"
	"vipearn/internal/repository"
	"vipearn/pkg/explorer"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const detectBatch = 100

// TransactionOracle finds a transfer by hash on any supported chain.
type TransactionOracle interface {
	CheckTransactionAcrossNetworks(ctx context.Context, hash string) (*explorer.Result, error)
}

type DepositSettings struct {
	MinAmount     decimal.Decimal
	PendingExpiry time.Duration
	// Addresses maps a network to the platform's receiving address.
	Addresses map[string]string
}

type DepositService struct {
	db          *gorm.DB
	depositRepo *repository.DepositRepository
	settingRepo *repository.SettingRepository
	ledger      *LedgerService
	oracle      TransactionOracle
	notifier    Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger
	cfg         DepositSettings
	now         Clock
}

func NewDepositService(db *gorm.DB, ledger *LedgerService, oracle TransactionOracle, notifier Notifier, m *metrics.Metrics, log *zap.Logger, cfg DepositSettings) *DepositService {
	if notifier == nil {
		notifier = NopNotifier
	}
	return &DepositService{
		db:          db,
		depositRepo: repository.NewDepositRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		ledger:      ledger,
		oracle:      oracle,
		notifier:    notifier,
		metrics:     m,
		log:         log.Named("deposit"),
		cfg:         cfg,
		now:         utcNow,
	}
}

func (s *DepositService) SetClock(c Clock) { s.now = c }

// Submit records a user-reported transaction hash and tries to verify it
// straight away. The deposit stays PENDING when the chain does not know it yet.
func (s *DepositService) Submit(ctx context.Context, userID uint, txHash, proofURL string) (*models.Deposit, error) {
	hash := explorer.CanonicalHash(txHash)
	if hash == "" {
		return nil, domain.ErrInvalidTxHash
	}
	exists, err := s.depositRepo.ExistsByTxHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateDeposit
	}
	d := &models.Deposit{
		UserID:   userID,
		TxHash:   hash,
		ProofURL: proofURL,
		Status:   domain.DepositStatusPending,
		Amount:   decimal.Zero,
	}
	if err := s.depositRepo.Create(ctx, d); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateDeposit
		}
		return nil, errors.Wrap(err, "create deposit")
	}
	s.log.Info("deposit submitted", zap.Uint("user-id", userID), zap.Uint("deposit-id", d.ID), zap.String("hash", hash))
	return s.Verify(ctx, d.ID)
}

// Verify checks a PENDING deposit against the chain. Confirmed transfers to
// the platform address at or above the minimum are credited; wrong recipients
// and small amounts are rejected; unknown hashes stay PENDING.
func (s *DepositService) Verify(ctx context.Context, depositID uint) (*models.Deposit, error) {
	d, err := s.depositRepo.GetByID(ctx, depositID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DepositStatusPending {
		return d, nil
	}

	res, err := s.oracle.CheckTransactionAcrossNetworks(ctx, d.TxHash)
	if err != nil || res == nil || !res.Found || !res.Confirmed {
		if err != nil {
			s.log.Warn("oracle lookup failed", zap.Uint("deposit-id", d.ID), zap.Error(err))
		}
		if err := s.depositRepo.MarkChecked(ctx, d.ID, s.now()); err != nil {
			return nil, err
		}
		return s.depositRepo.GetByID(ctx, d.ID)
	}

	if reason := s.rejectReason(ctx, res); reason != "" {
		return s.finish(ctx, d.ID, res, domain.DepositStatusRejected, reason)
	}
	return s.finish(ctx, d.ID, res, domain.DepositStatusConfirmed, "")
}

func (s *DepositService) rejectReason(ctx context.Context, res *explorer.Result) string {
	platform := s.cfg.Addresses[res.Network]
	if platform == "" {
		return fmt.Sprintf("no platform address configured for %s", res.Network)
	}
	if !sameAddress(res.Network, res.Recipient, platform) {
		return "recipient does not match platform address"
	}
	if res.Token != "USDT" {
		return fmt.Sprintf("unsupported token %q", res.Token)
	}
	min := s.minAmount(ctx)
	if res.Amount.LessThan(min) {
		return fmt.Sprintf("amount %s is below the minimum deposit of %s", res.Amount.String(), min.String())
	}
	return ""
}

func (s *DepositService) minAmount(ctx context.Context) decimal.Decimal {
	min, err := s.settingRepo.Decimal(ctx, domain.SettingMinDeposit, s.cfg.MinAmount)
	if err != nil {
		s.log.Warn("minimum deposit setting ignored", zap.Error(err))
	}
	return min
}

func (s *DepositService) finish(ctx context.Context, depositID uint, res *explorer.Result, status, reason string) (*models.Deposit, error) {
	var d *models.Deposit
	transitioned := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.depositRepo.WithTx(tx)
		var err error
		d, err = repo.LockByID(ctx, depositID)
		if err != nil {
			return err
		}
		if d.Status != domain.DepositStatusPending {
			return nil
		}
		now := s.now()
		d.Status = status
		d.Reason = reason
		d.Network = res.Network
		d.Amount = res.Amount.Round(domain.MoneyPlaces)
		d.Sender = res.Sender
		d.Recipient = res.Recipient
		d.BlockNumber = res.BlockNumber
		d.Attempts++
		d.LastCheckedAt = &now
		if status == domain.DepositStatusConfirmed {
			d.ConfirmedAt = &now
		}
		if err := repo.Update(ctx, d); err != nil {
			return errors.Wrap(err, "update deposit")
		}
		transitioned = true
		if status != domain.DepositStatusConfirmed {
			return nil
		}
		_, err = s.ledger.AdjustBalance(ctx, tx, Adjustment{
			UserID:      d.UserID,
			Amount:      d.Amount,
			Type:        domain.TxTypeDeposit,
			Description: fmt.Sprintf("USDT deposit on %s", d.Network),
			ReferenceID: fmt.Sprintf("deposit:%d", d.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return d, nil
	}

	s.metrics.Deposit(status, d.Network)
	s.log.Info("deposit verified",
		zap.Uint("deposit-id", d.ID),
		zap.String("status", status),
		zap.String("network", d.Network),
		zap.String("amount", d.Amount.String()),
		zap.String("reason", reason))
	data := map[string]interface{}{
		"deposit_id": d.ID,
		"amount":     d.Amount.String(),
		"network":    d.Network,
		"reference":  d.TxHash,
	}
	if status == domain.DepositStatusConfirmed {
		s.notifier.Send(d.UserID, domain.TemplateDepositConfirmed, data)
	} else {
		data["reason"] = reason
		s.notifier.Send(d.UserID, domain.TemplateDepositRejected, data)
	}
	return d, nil
}

// ExpireStale moves PENDING deposits older than the expiry window to EXPIRED.
func (s *DepositService) ExpireStale(ctx context.Context) (int64, error) {
	if s.cfg.PendingExpiry <= 0 {
		return 0, nil
	}
	n, err := s.depositRepo.ExpireOlderThan(ctx, s.now().Add(-s.cfg.PendingExpiry))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.Deposit(domain.DepositStatusExpired, "")
		s.log.Info("expired stale deposits", zap.Int64("count", n))
	}
	return n, nil
}

// DetectPending re-verifies pending deposits and expires stale ones. It is
// the body of the deposit detector worker.
func (s *DepositService) DetectPending(ctx context.Context) error {
	pending, err := s.depositRepo.ListPending(ctx, detectBatch)
	if err != nil {
		return errors.Wrap(err, "list pending deposits")
	}
	for _, d := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.Verify(ctx, d.ID); err != nil {
			s.log.Error("deposit verification failed", zap.Uint("deposit-id", d.ID), zap.Error(err))
		}
	}
	_, err = s.ExpireStale(ctx)
	return err
}

func (s *DepositService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Deposit, error) {
	return s.depositRepo.ListByUserID(ctx, userID, limit, offset)
}

// Get returns one of the user's deposits.
func (s *DepositService) Get(ctx context.Context, userID, depositID uint) (*models.Deposit, error) {
	d, err := s.depositRepo.GetByID(ctx, depositID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && d.UserID != userID) {
		return nil, domain.ErrDepositNotFound
	}
	return d, err
}

func sameAddress(network, a, b string) bool {
	if network == domain.NetworkTron {
		return a == b
	}
	return strings.EqualFold(a, b)
}
