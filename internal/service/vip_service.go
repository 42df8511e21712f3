package service

import (
	"context"
	"fmt"

	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Quote is the price of moving a user onto a tier.
type Quote struct {
	Level       models.VipLevel `json:"level"`
	Price       decimal.Decimal `json:"price"`
	AlreadyPaid decimal.Decimal `json:"already_paid"`
	Charge      decimal.Decimal `json:"charge"`
	IsUpgrade   bool            `json:"is_upgrade"`
}

type PurchaseResult struct {
	Membership  *models.UserVip     `json:"membership"`
	Charge      decimal.Decimal     `json:"charge"`
	IsUpgrade   bool                `json:"is_upgrade"`
	Transaction *models.Transaction `json:"transaction"`
	Bonuses     []BonusResult       `json:"referral_bonuses"`
}

type VipService struct {
	db       *gorm.DB
	vipRepo  *repository.VipRepository
	wallets  *repository.WalletRepository
	ledger   *LedgerService
	referral *ReferralService
	notifier Notifier
	log      *zap.Logger
	now      Clock
}

func NewVipService(db *gorm.DB, ledger *LedgerService, referral *ReferralService, notifier Notifier, log *zap.Logger) *VipService {
	if notifier == nil {
		notifier = NopNotifier
	}
	return &VipService{
		db:       db,
		vipRepo:  repository.NewVipRepository(db),
		wallets:  repository.NewWalletRepository(db),
		ledger:   ledger,
		referral: referral,
		notifier: notifier,
		log:      log.Named("vip"),
		now:      utcNow,
	}
}

func (s *VipService) SetClock(c Clock) { s.now = c }

func (s *VipService) ListLevels(ctx context.Context) ([]models.VipLevel, error) {
	return s.vipRepo.ListActiveLevels(ctx)
}

// Current returns the user's active membership.
func (s *VipService) Current(ctx context.Context, userID uint) (*models.UserVip, error) {
	uv, err := s.vipRepo.GetActiveMembership(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveVip
	}
	return uv, err
}

func (s *VipService) Quote(ctx context.Context, userID, levelID uint) (*Quote, error) {
	level, err := s.level(ctx, s.vipRepo, levelID)
	if err != nil {
		return nil, err
	}
	uv, err := s.vipRepo.GetActiveMembership(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return quoteFor(level, uv)
}

// quoteFor prices a move onto level given the current membership, which may be nil.
func quoteFor(level *models.VipLevel, uv *models.UserVip) (*Quote, error) {
	q := &Quote{Level: *level, Price: level.Amount, AlreadyPaid: decimal.Zero}
	if uv != nil && uv.IsActive {
		q.AlreadyPaid = uv.TotalPaid
		q.IsUpgrade = true
		if level.Amount.LessThanOrEqual(uv.TotalPaid) {
			return nil, domain.ErrDowngradeNotAllowed
		}
	}
	q.Charge = q.Price.Sub(q.AlreadyPaid)
	return q, nil
}

func (s *VipService) level(ctx context.Context, repo *repository.VipRepository, id uint) (*models.VipLevel, error) {
	level, err := repo.GetLevel(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrVipLevelNotFound
	}
	return level, err
}

// Purchase buys or upgrades to levelID, paying only the difference over what
// was already paid. Referral bonuses run on the charged amount after commit;
// their failure does not undo the purchase.
func (s *VipService) Purchase(ctx context.Context, userID, levelID uint) (*PurchaseResult, error) {
	ref := "vip:" + uuid.NewString()
	now := s.now()
	var res PurchaseResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vipRepo := s.vipRepo.WithTx(tx)
		level, err := s.level(ctx, vipRepo, levelID)
		if err != nil {
			return err
		}
		uv, err := vipRepo.LockMembership(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "lock membership")
		}
		q, err := quoteFor(level, uv)
		if err != nil {
			return err
		}

		w, err := s.wallets.WithTx(tx).LockForUpdate(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock wallet")
		}
		if w.Balance.LessThan(q.Charge) {
			return domain.ErrInsufficientBalance
		}
		entry, err := s.ledger.AdjustBalance(ctx, tx, Adjustment{
			UserID:      userID,
			Amount:      q.Charge.Neg(),
			Type:        domain.TxTypeVipPayment,
			Description: fmt.Sprintf("%s purchase", level.Name),
			ReferenceID: ref,
		})
		if err != nil {
			return err
		}

		if uv == nil {
			uv = &models.UserVip{UserID: userID}
		} else if q.IsUpgrade {
			uv.UpgradedAt = &now
		}
		if !q.IsUpgrade {
			uv.PurchasedAt = now
		}
		uv.VipLevelID = level.ID
		uv.TotalPaid = q.AlreadyPaid.Add(q.Charge)
		uv.IsActive = true
		if err := vipRepo.SaveMembership(ctx, uv); err != nil {
			return errors.Wrap(err, "save membership")
		}
		uv.VipLevel = level

		res = PurchaseResult{Membership: uv, Charge: q.Charge, IsUpgrade: q.IsUpgrade, Transaction: entry.Transaction}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("vip purchased",
		zap.Uint("user-id", userID),
		zap.Uint("level-id", levelID),
		zap.String("charge", res.Charge.String()),
		zap.Bool("upgrade", res.IsUpgrade))

	if s.referral != nil && res.Charge.IsPositive() {
		lvl := levelID
		bonuses, err := s.referral.ProcessMultiLevelBonus(ctx, userID, res.Charge, BonusSource{Ref: ref, VipLevelID: &lvl})
		if err != nil {
			s.log.Error("referral bonus failed after vip purchase",
				zap.Uint("user-id", userID), zap.String("reference", ref), zap.Error(err))
		}
		res.Bonuses = bonuses
	}

	s.notifier.Send(userID, domain.TemplateVipPurchased, map[string]interface{}{
		"level":      res.Membership.VipLevel.Name,
		"charge":     res.Charge.String(),
		"is_upgrade": res.IsUpgrade,
	})
	return &res, nil
}
