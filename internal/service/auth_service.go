package service

import (
	"context"
	"strings"

	"vipearn/config"
	"vipearn/internal/auth"
	"vipearn/internal/domain"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const referralCodeAttempts = 5

type RegisterInput struct {
	Email        string
	Username     string
	Password     string
	ReferralCode string
}

type AuthService struct {
	cfg      *config.Config
	db       *gorm.DB
	userRepo *repository.UserRepository
	referral *ReferralService
	log      *zap.Logger
}

func NewAuthService(cfg *config.Config, db *gorm.DB, referral *ReferralService, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg:      cfg,
		db:       db,
		userRepo: repository.NewUserRepository(db),
		referral: referral,
		log:      log.Named("auth"),
	}
}

// Register creates the user and their wallet, then links the referrer when a
// code was supplied. An unknown code fails the registration before anything
// is written.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, *auth.TokenPair, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.ReferralCode = strings.TrimSpace(in.ReferralCode)
	if in.Email == "" || in.Username == "" || len(in.Password) < 6 {
		return nil, nil, domain.Validation("INVALID_REGISTRATION", "email, username and a password of at least 6 characters are required")
	}
	if err := s.ensureUnique(ctx, in.Email, in.Username); err != nil {
		return nil, nil, err
	}
	if in.ReferralCode != "" {
		if _, err := s.userRepo.GetByReferralCode(ctx, in.ReferralCode); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, domain.Validation("INVALID_REFERRAL_CODE", "referral code not found")
			}
			return nil, nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, errors.Wrap(err, "hash password")
	}
	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, nil, err
	}
	u := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		ReferralCode: code,
		IsActive:     true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Create(ctx, u); err != nil {
			return err
		}
		_, err := repository.NewWalletRepository(tx).GetOrCreate(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "create user")
	}

	if in.ReferralCode != "" {
		if err := s.referral.AssignByCode(ctx, u.ID, in.ReferralCode); err != nil {
			s.log.Warn("referrer not linked", zap.Uint("user-id", u.ID), zap.Error(err))
		} else if fresh, err := s.userRepo.GetByID(ctx, u.ID); err == nil {
			u = fresh
		}
	}
	s.log.Info("user registered", zap.Uint("user-id", u.ID), zap.Bool("referred", u.ReferredBy != nil))

	pair, err := auth.GenerateTokenPair(&s.cfg.JWT, u.ID, u.Username, u.Role)
	if err != nil {
		return u, nil, err
	}
	return u, pair, nil
}

func (s *AuthService) ensureUnique(ctx context.Context, email, username string) error {
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return domain.ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return domain.ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *AuthService) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := repository.GenerateReferralCode()
		if err != nil {
			return "", err
		}
		var n int64
		if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *auth.TokenPair, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, nil, domain.ErrAccountDisabled
	}
	pair, err := auth.GenerateTokenPair(&s.cfg.JWT, u.ID, u.Username, u.Role)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	return auth.GenerateTokenPair(&s.cfg.JWT, u.ID, u.Username, u.Role)
}

// ChangePassword requires the current password.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return domain.ErrInvalidCredentials
	}
	if len(next) < 6 {
		return domain.Validation("WEAK_PASSWORD", "password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	return s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	return u, err
}

func (s *AuthService) UpdateFCMToken(ctx context.Context, userID uint, token string) error {
	return s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"fcm_token": strings.TrimSpace(token)})
}

// LinkTelegram stores the chat id the bot delivers notifications to. A zero
// id unlinks.
func (s *AuthService) LinkTelegram(ctx context.Context, userID uint, chatID int64) error {
	var v interface{}
	if chatID != 0 {
		v = chatID
	}
	return s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"telegram_chat_id": v})
}
