package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/repository"
	"vipearn/internal/worker"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkerControl is the lifecycle handle of a background runner.
type WorkerControl interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() worker.Status
}

// Actor identifies who performed a privileged action.
type Actor struct {
	UserID uint
	IP     string
}

type AdminService struct {
	db          *gorm.DB
	ledger      *LedgerService
	referral    *ReferralService
	withdrawals *WithdrawalService
	notifier    Notifier
	detector    WorkerControl
	userRepo    *repository.UserRepository
	settingRepo *repository.SettingRepository
	auditRepo   *repository.AuditLogRepository
	adminRepo   *repository.AdminRepository
	log         *zap.Logger
	// base outlives the request that starts the detector.
	base context.Context
}

func NewAdminService(
	db *gorm.DB,
	ledger *LedgerService,
	referral *ReferralService,
	withdrawals *WithdrawalService,
	notifier Notifier,
	detector WorkerControl,
	log *zap.Logger,
) *AdminService {
	if notifier == nil {
		notifier = NopNotifier
	}
	return &AdminService{
		db:          db,
		ledger:      ledger,
		referral:    referral,
		withdrawals: withdrawals,
		notifier:    notifier,
		detector:    detector,
		userRepo:    repository.NewUserRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		auditRepo:   repository.NewAuditLogRepository(db),
		adminRepo:   repository.NewAdminRepository(db),
		log:         log.Named("admin"),
		base:        context.Background(),
	}
}

// SetBaseContext sets the context background workers started by an admin run under.
func (s *AdminService) SetBaseContext(ctx context.Context) { s.base = ctx }

func (s *AdminService) audit(ctx context.Context, actor Actor, action, resource, resourceID string, meta map[string]interface{}) {
	raw, _ := json.Marshal(meta)
	id := actor.UserID
	entry := &models.AuditLog{
		UserID:     &id,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         actor.IP,
		Metadata:   string(raw),
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.log.Error("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

// AdjustWallet books a signed ADMIN_ADJUSTMENT. The ledger refuses any debit
// that would take the balance below zero.
func (s *AdminService) AdjustWallet(ctx context.Context, actor Actor, userID uint, amount decimal.Decimal, reason string) (*LedgerEntry, error) {
	if amount.IsZero() {
		return nil, domain.Validation("INVALID_AMOUNT", "amount must be non-zero")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if reason == "" {
		reason = "Admin balance adjustment"
	}
	entry, err := s.ledger.AdjustBalance(ctx, nil, Adjustment{
		UserID:      userID,
		Amount:      amount,
		Type:        domain.TxTypeAdminAdjustment,
		Description: reason,
		ReferenceID: "admin:" + uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "wallet.adjust", "wallet", strconv.FormatUint(uint64(userID), 10), map[string]interface{}{
		"amount": amount.String(),
		"reason": reason,
	})
	s.notifier.Send(userID, domain.TemplateBalanceAdjusted, map[string]interface{}{
		"amount":    amount.String(),
		"balance":   entry.Wallet.Balance.String(),
		"reason":    reason,
		"reference": entry.Transaction.ReferenceID,
	})
	return entry, nil
}

// ChangeReferrer re-parents a user. A nil referrer detaches them.
func (s *AdminService) ChangeReferrer(ctx context.Context, actor Actor, userID uint, referrerID *uint) error {
	if referrerID == nil {
		if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if err := s.userRepo.SetReferrer(ctx, userID, nil); err != nil {
			return err
		}
	} else if err := s.referral.AssignReferrer(ctx, userID, *referrerID); err != nil {
		return err
	}
	meta := map[string]interface{}{"referrer_id": nil}
	if referrerID != nil {
		meta["referrer_id"] = *referrerID
	}
	s.audit(ctx, actor, "user.referrer", "user", strconv.FormatUint(uint64(userID), 10), meta)
	return nil
}

func (s *AdminService) ApproveWithdrawal(ctx context.Context, actor Actor, id uint, txHash string) (*models.Withdrawal, error) {
	w, err := s.withdrawals.Approve(ctx, id, actor.UserID, txHash)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "withdrawal.approve", "withdrawal", strconv.FormatUint(uint64(id), 10), map[string]interface{}{
		"amount":    w.Amount.String(),
		"shortfall": w.Shortfall.String(),
		"tx_hash":   w.TxHash,
	})
	return w, nil
}

func (s *AdminService) RejectWithdrawal(ctx context.Context, actor Actor, id uint, reason string) (*models.Withdrawal, error) {
	w, err := s.withdrawals.Reject(ctx, id, actor.UserID, reason)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "withdrawal.reject", "withdrawal", strconv.FormatUint(uint64(id), 10), map[string]interface{}{
		"reason": reason,
	})
	return w, nil
}

func (s *AdminService) ListWithdrawals(ctx context.Context, status string, limit, offset int) ([]models.Withdrawal, error) {
	if status == "" {
		status = domain.WithdrawalStatusPending
	}
	return s.withdrawals.ListByStatus(ctx, status, limit, offset)
}

// settingBounds lists the tunable keys and the range each value must fall in.
var settingBounds = map[string][2]decimal.Decimal{
	domain.SettingReferralRateLevel1:   {decimal.Zero, decimal.NewFromInt(1)},
	domain.SettingReferralRateLevel2:   {decimal.Zero, decimal.NewFromInt(1)},
	domain.SettingReferralRateLevel3:   {decimal.Zero, decimal.NewFromInt(1)},
	domain.SettingSessionCooldownHours: {decimal.Zero, decimal.NewFromInt(24 * 30)},
	domain.SettingMinWithdrawal:        {decimal.Zero, decimal.NewFromInt(1_000_000)},
	domain.SettingMinDeposit:           {decimal.Zero, decimal.NewFromInt(1_000_000)},
}

func (s *AdminService) Settings(ctx context.Context) ([]models.SystemSetting, error) {
	return s.settingRepo.List(ctx)
}

func (s *AdminService) UpdateSetting(ctx context.Context, actor Actor, key, value string) error {
	bounds, ok := settingBounds[key]
	if !ok {
		return domain.NotFound("SETTING_NOT_FOUND", "unknown setting")
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return domain.Validation("INVALID_SETTING", "setting value must be numeric")
	}
	if v.LessThan(bounds[0]) || v.GreaterThan(bounds[1]) {
		return domain.Validation("INVALID_SETTING", fmt.Sprintf("%s must be between %s and %s", key, bounds[0], bounds[1]))
	}
	if err := s.settingRepo.Set(ctx, key, v.String()); err != nil {
		return err
	}
	s.audit(ctx, actor, "setting.update", "setting", key, map[string]interface{}{"value": v.String()})
	return nil
}

func (s *AdminService) StartDetector(ctx context.Context, actor Actor) (worker.Status, bool) {
	started := s.detector.Start(s.base)
	if started {
		s.audit(ctx, actor, "detector.start", "worker", s.detector.Status().Name, nil)
	}
	return s.detector.Status(), started
}

func (s *AdminService) StopDetector(ctx context.Context, actor Actor) (worker.Status, bool) {
	stopped := s.detector.Stop()
	if stopped {
		s.audit(ctx, actor, "detector.stop", "worker", s.detector.Status().Name, nil)
	}
	return s.detector.Status(), stopped
}

func (s *AdminService) DetectorStatus() worker.Status {
	return s.detector.Status()
}

func (s *AdminService) Stats(ctx context.Context) (*repository.DashboardStats, error) {
	return s.adminRepo.GetDashboardStats(ctx)
}

func (s *AdminService) SignupsByDay(ctx context.Context, days int) ([]repository.TimeSeriesPoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	return s.adminRepo.UserSignupsByDay(ctx, days)
}

func (s *AdminService) ListUsers(ctx context.Context, search string, page, limit int) ([]models.User, int64, error) {
	return s.adminRepo.ListUsers(ctx, search, page, limit)
}

func (s *AdminService) ListTransactions(ctx context.Context, txType string, page, limit int) ([]models.Transaction, int64, error) {
	return s.adminRepo.ListTransactions(ctx, txType, page, limit)
}

func (s *AdminService) AuditLog(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.auditRepo.ListRecent(ctx, limit)
}
