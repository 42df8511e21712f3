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

// maxAncestryDepth bounds the cycle check on referrer assignment.
const maxAncestryDepth = 64

var defaultReferralRates = [domain.MaxReferralLevels]decimal.Decimal{
	decimal.RequireFromString("0.10"),
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.02"),
}

var referralRateKeys = [domain.MaxReferralLevels]string{
	domain.SettingReferralRateLevel1,
	domain.SettingReferralRateLevel2,
	domain.SettingReferralRateLevel3,
}

var errBonusAlreadyPaid = errors.New("referral bonus already paid")

// BonusSource identifies the qualifying event a commission is paid on.
// Ref must be unique per event; it is the idempotency key of every level.
type BonusSource struct {
	Ref        string
	DepositID  *uint
	VipLevelID *uint
}

// BonusResult is one commission that was committed.
type BonusResult struct {
	Level      int             `json:"level"`
	ReferrerID uint            `json:"referrer_id"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
	BonusID    uint            `json:"bonus_id"`
}

// ReferralService handles referrer assignment and multi-level bonus credits.
type ReferralService struct {
	db           *gorm.DB
	userRepo     *repository.UserRepository
	referralRepo *repository.ReferralRepository
	settingRepo  *repository.SettingRepository
	ledger       *LedgerService
	notifier     Notifier
	metrics      *metrics.Metrics
	log          *zap.Logger
}

func NewReferralService(
	db *gorm.DB,
	ledger *LedgerService,
	notifier Notifier,
	m *metrics.Metrics,
	log *zap.Logger,
) *ReferralService {
	if notifier == nil {
		notifier = NopNotifier
	}
	return &ReferralService{
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		referralRepo: repository.NewReferralRepository(db),
		settingRepo:  repository.NewSettingRepository(db),
		ledger:       ledger,
		notifier:     notifier,
		metrics:      m,
		log:          log.Named("referral"),
	}
}

// ProcessMultiLevelBonus credits up to three ancestors of the paying user.
// Each level commits in its own transaction. On failure the levels already
// committed are returned with the error and the remaining levels are skipped.
func (s *ReferralService) ProcessMultiLevelBonus(ctx context.Context, payerID uint, amount decimal.Decimal, src BonusSource) ([]BonusResult, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if src.Ref == "" {
		return nil, domain.Validation("MISSING_SOURCE", "bonus source reference is required")
	}
	payer, err := s.userRepo.GetByIDUnscoped(ctx, payerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "load payer")
	}
	if payer.ReferredBy == nil {
		return nil, nil
	}

	rates := s.rates(ctx)
	visited := map[uint]bool{payer.ID: true}
	var results []BonusResult
	next := payer.ReferredBy
	for level := 1; level <= domain.MaxReferralLevels && next != nil; level++ {
		ancestorID := *next
		if visited[ancestorID] {
			s.log.Warn("referral cycle detected, stopping walk",
				zap.Uint("payer-id", payer.ID), zap.Uint("ancestor-id", ancestorID), zap.Int("level", level))
			break
		}
		visited[ancestorID] = true

		ancestor, err := s.userRepo.GetByIDUnscoped(ctx, ancestorID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("dangling referrer pointer", zap.Uint("ancestor-id", ancestorID))
			break
		}
		if err != nil {
			return results, errors.Wrapf(err, "load level %d referrer", level)
		}
		next = ancestor.ReferredBy

		if !ancestor.IsActive || ancestor.DeletedAt.Valid {
			s.log.Debug("skipping inactive referrer", zap.Uint("ancestor-id", ancestor.ID), zap.Int("level", level))
			continue
		}
		rate := rates[level-1]
		bonus := amount.Mul(rate).Round(domain.MoneyPlaces)
		if !bonus.IsPositive() {
			continue
		}

		res, err := s.creditLevel(ctx, payer.ID, ancestor.ID, level, rate, bonus, amount, src)
		if errors.Is(err, errBonusAlreadyPaid) {
			s.log.Info("referral bonus already paid",
				zap.Uint("referrer-id", ancestor.ID), zap.Int("level", level), zap.String("source", src.Ref))
			continue
		}
		if err != nil {
			return results, errors.Wrapf(err, "level %d bonus for user %d", level, ancestor.ID)
		}
		results = append(results, *res)

		s.metrics.ReferralBonus(fmt.Sprint(level), bonus)
		s.notifier.Send(ancestor.ID, domain.TemplateReferralBonus, map[string]interface{}{
			"level":         level,
			"amount":        bonus.String(),
			"source_amount": amount.String(),
			"from_user_id":  payer.ID,
			"reference":     src.Ref,
		})
	}
	return results, nil
}

func (s *ReferralService) creditLevel(ctx context.Context, payerID, referrerID uint, level int, rate, bonus, source decimal.Decimal, src BonusSource) (*BonusResult, error) {
	var out *BonusResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.referralRepo.WithTx(tx)
		paid, err := repo.BonusExists(ctx, payerID, referrerID, level, src.Ref)
		if err != nil {
			return err
		}
		if paid {
			return errBonusAlreadyPaid
		}
		if _, err := s.ledger.AdjustBalance(ctx, tx, Adjustment{
			UserID:      referrerID,
			Amount:      bonus,
			Type:        domain.TxTypeReferralBonus,
			Description: fmt.Sprintf("Level %d referral bonus (%s%% of %s)", level, rate.Mul(decimal.NewFromInt(100)).String(), source.StringFixed(2)),
			ReferenceID: src.Ref,
		}); err != nil {
			return err
		}
		row := &models.ReferralBonus{
			ReferrerID:   referrerID,
			ReferredID:   payerID,
			Level:        level,
			BonusAmount:  bonus,
			BonusRate:    rate,
			SourceAmount: source,
			SourceRef:    src.Ref,
			DepositID:    src.DepositID,
			VipLevelID:   src.VipLevelID,
		}
		if err := repo.CreateBonus(ctx, row); err != nil {
			return errors.Wrap(err, "insert referral bonus")
		}
		out = &BonusResult{Level: level, ReferrerID: referrerID, Rate: rate, Amount: bonus, BonusID: row.ID}
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateLedgerEntry) {
		return nil, errBonusAlreadyPaid
	}
	return out, err
}

// rates reads the per-level rates, falling back to the defaults.
func (s *ReferralService) rates(ctx context.Context) [domain.MaxReferralLevels]decimal.Decimal {
	var out [domain.MaxReferralLevels]decimal.Decimal
	for i := range out {
		rate, err := s.settingRepo.Decimal(ctx, referralRateKeys[i], defaultReferralRates[i])
		if err != nil {
			s.log.Warn("invalid rate setting, using default", zap.String("key", referralRateKeys[i]), zap.Error(err))
		}
		out[i] = rate
	}
	return out
}

// AssignReferrer points userID at referrerID. Self-referral and any link that
// would close a loop in the referral graph are rejected.
func (s *ReferralService) AssignReferrer(ctx context.Context, userID, referrerID uint) error {
	if userID == referrerID {
		return domain.ErrSelfReferral
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	referrer, err := s.userRepo.GetByID(ctx, referrerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFound("REFERRER_NOT_FOUND", "referrer not found")
		}
		return err
	}

	seen := map[uint]bool{referrer.ID: true}
	next := referrer.ReferredBy
	for depth := 0; next != nil && depth < maxAncestryDepth; depth++ {
		if *next == userID {
			return domain.ErrReferralCycle
		}
		if seen[*next] {
			break
		}
		seen[*next] = true
		anc, err := s.userRepo.GetByIDUnscoped(ctx, *next)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "walk referrer ancestry")
		}
		next = anc.ReferredBy
	}

	id := referrer.ID
	return s.userRepo.SetReferrer(ctx, userID, &id)
}

// AssignByCode links a new user to the owner of a referral code. An empty
// code is a no-op.
func (s *ReferralService) AssignByCode(ctx context.Context, userID uint, code string) error {
	if code == "" {
		return nil
	}
	owner, err := s.userRepo.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Validation("INVALID_REFERRAL_CODE", "referral code not found")
		}
		return err
	}
	return s.AssignReferrer(ctx, userID, owner.ID)
}

// ReferralSummary is the referral dashboard of a user.
type ReferralSummary struct {
	ReferralCode  string                  `json:"referral_code"`
	DirectCount   int64                   `json:"direct_count"`
	TotalEarned   decimal.Decimal         `json:"total_earned"`
	Levels        []repository.LevelTotal `json:"levels"`
	RecentBonuses []models.ReferralBonus  `json:"recent_bonuses"`
	DirectUsers   []ReferredUser          `json:"direct_users"`
}

type ReferredUser struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"joined_at"`
}

func (s *ReferralService) Summary(ctx context.Context, userID uint) (*ReferralSummary, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	count, err := s.userRepo.CountReferredBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	levels, err := s.referralRepo.SumByLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.referralRepo.ListByReferrerID(ctx, userID, 20, 0)
	if err != nil {
		return nil, err
	}
	direct, err := s.userRepo.ListReferredBy(ctx, userID, 50, 0)
	if err != nil {
		return nil, err
	}
	sum := &ReferralSummary{
		ReferralCode:  u.ReferralCode,
		DirectCount:   count,
		TotalEarned:   decimal.Zero,
		Levels:        levels,
		RecentBonuses: recent,
		DirectUsers:   make([]ReferredUser, 0, len(direct)),
	}
	for _, l := range levels {
		sum.TotalEarned = sum.TotalEarned.Add(l.Total)
	}
	for _, d := range direct {
		sum.DirectUsers = append(sum.DirectUsers, ReferredUser{ID: d.ID, Username: d.Username, CreatedAt: d.CreatedAt.Format("2006-01-02")})
	}
	return sum, nil
}
