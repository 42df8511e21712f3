package service

import (
	"context"
	"fmt"
	"strings"

	"vipearn/internal/domain"
	"vipearn/internal/metrics"
	"vipearn/internal/models"
	"vipearn/internal/repository"
	"vipearn/pkg/explorer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WithdrawalService struct {
	db             *gorm.DB
	withdrawalRepo *repository.WithdrawalRepository
	wallets        *repository.WalletRepository
	settingRepo    *repository.SettingRepository
	ledger         *LedgerService
	notifier       Notifier
	metrics        *metrics.Metrics
	log            *zap.Logger
	minAmount      decimal.Decimal
	now            Clock
}

func NewWithdrawalService(db *gorm.DB, ledger *LedgerService, notifier Notifier, m *metrics.Metrics, log *zap.Logger, minAmount decimal.Decimal) *WithdrawalService {
	if notifier == nil {
		notifier = NopNotifier
	}
	return &WithdrawalService{
		db:             db,
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		wallets:        repository.NewWalletRepository(db),
		settingRepo:    repository.NewSettingRepository(db),
		ledger:         ledger,
		notifier:       notifier,
		metrics:        m,
		log:            log.Named("withdrawal"),
		minAmount:      minAmount,
		now:            utcNow,
	}
}

// ValidateAddress checks an address against the network's format.
func ValidateAddress(network, address string) error {
	switch network {
	case domain.NetworkTron:
		if !explorer.IsTronAddress(address) {
			return domain.ErrInvalidAddress
		}
	case domain.NetworkBSC, domain.NetworkEthereum, domain.NetworkPolygon:
		if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
			return domain.ErrInvalidAddress
		}
	default:
		return domain.ErrInvalidNetwork
	}
	return nil
}

func (s *WithdrawalService) minimum(ctx context.Context) decimal.Decimal {
	min, err := s.settingRepo.Decimal(ctx, domain.SettingMinWithdrawal, s.minAmount)
	if err != nil {
		s.log.Warn("minimum withdrawal setting ignored", zap.Error(err))
	}
	return min
}

// Request queues a withdrawal for admin review. Nothing is debited until it
// is approved; a user may have one pending withdrawal at a time.
func (s *WithdrawalService) Request(ctx context.Context, userID uint, amount decimal.Decimal, address, network string) (*models.Withdrawal, error) {
	amount = amount.Round(domain.MoneyPlaces)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if min := s.minimum(ctx); amount.LessThan(min) {
		return nil, domain.Validation("BELOW_MINIMUM", fmt.Sprintf("minimum withdrawal is %s", min.String()))
	}
	network = strings.ToUpper(strings.TrimSpace(network))
	address = strings.TrimSpace(address)
	if err := ValidateAddress(network, address); err != nil {
		return nil, err
	}

	var w *models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.wallets.WithTx(tx).LockForUpdate(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock wallet")
		}
		repo := s.withdrawalRepo.WithTx(tx)
		pending, err := repo.HasPending(ctx, userID)
		if err != nil {
			return err
		}
		if pending {
			return domain.ErrWithdrawalPending
		}
		if wallet.Balance.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}
		w = &models.Withdrawal{
			UserID:       userID,
			OrderID:      uuid.NewString(),
			Amount:       amount,
			Address:      address,
			Network:      network,
			Status:       domain.WithdrawalStatusPending,
			FromEarnings: decimal.Zero,
			FromReferral: decimal.Zero,
			Shortfall:    decimal.Zero,
		}
		return repo.Create(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Withdrawal(domain.WithdrawalStatusPending)
	s.log.Info("withdrawal requested",
		zap.Uint("user-id", userID), zap.Uint("withdrawal-id", w.ID), zap.String("amount", amount.String()))
	return w, nil
}

// Approve debits the wallet and completes the withdrawal. If the balance no
// longer covers the amount it is clamped to zero and the gap is recorded as
// a shortfall.
func (s *WithdrawalService) Approve(ctx context.Context, id, adminID uint, txHash string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.withdrawalRepo.WithTx(tx)
		var err error
		w, err = repo.LockByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrWithdrawalNotFound
		}
		if err != nil {
			return err
		}
		if w.Status != domain.WithdrawalStatusPending {
			return domain.ErrNotPending
		}
		entry, err := s.ledger.AdjustBalance(ctx, tx, Adjustment{
			UserID:      w.UserID,
			Amount:      w.Amount.Neg(),
			Type:        domain.TxTypeWithdrawal,
			Description: fmt.Sprintf("Withdrawal %s to %s (%s)", w.OrderID, w.Address, w.Network),
			ReferenceID: fmt.Sprintf("withdrawal:%d", w.ID),
		})
		if err != nil {
			return err
		}
		now := s.now()
		w.Status = domain.WithdrawalStatusCompleted
		w.FromEarnings = entry.FromEarnings
		w.FromReferral = entry.FromReferral
		w.Shortfall = entry.Shortfall
		w.TxHash = strings.TrimSpace(txHash)
		w.ProcessedBy = &adminID
		w.ProcessedAt = &now
		return repo.Update(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Withdrawal(domain.WithdrawalStatusCompleted)
	if w.Shortfall.IsPositive() {
		s.log.Warn("withdrawal completed with shortfall",
			zap.Uint("withdrawal-id", w.ID), zap.String("shortfall", w.Shortfall.String()))
	}
	s.notifier.Send(w.UserID, domain.TemplateWithdrawalCompleted, map[string]interface{}{
		"withdrawal_id": w.ID,
		"amount":        w.Amount.String(),
		"address":       w.Address,
		"network":       w.Network,
		"reference":     w.OrderID,
	})
	return w, nil
}

// Reject closes a pending withdrawal without moving money.
func (s *WithdrawalService) Reject(ctx context.Context, id, adminID uint, reason string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.withdrawalRepo.WithTx(tx)
		var err error
		w, err = repo.LockByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrWithdrawalNotFound
		}
		if err != nil {
			return err
		}
		if w.Status != domain.WithdrawalStatusPending {
			return domain.ErrNotPending
		}
		now := s.now()
		w.Status = domain.WithdrawalStatusRejected
		w.Reason = reason
		w.ProcessedBy = &adminID
		w.ProcessedAt = &now
		return repo.Update(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Withdrawal(domain.WithdrawalStatusRejected)
	s.notifier.Send(w.UserID, domain.TemplateWithdrawalRejected, map[string]interface{}{
		"withdrawal_id": w.ID,
		"amount":        w.Amount.String(),
		"reason":        reason,
		"reference":     w.OrderID,
	})
	return w, nil
}

func (s *WithdrawalService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Withdrawal, error) {
	return s.withdrawalRepo.ListByUserID(ctx, userID, limit, offset)
}

func (s *WithdrawalService) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Withdrawal, error) {
	return s.withdrawalRepo.ListByStatus(ctx, status, limit, offset)
}
