package service

import (
	"testing"
	"time"

	"vipearn/config"
	"vipearn/internal/auth"
	"vipearn/internal/domain"
	"vipearn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) auth() *AuthService {
	cfg := &config.Config{JWT: config.JWTConfig{
		AccessSecret: "access", RefreshSecret: "refresh",
		AccessExpiry: time.Minute, RefreshExpiry: time.Hour, Issuer: "vipearn",
	}}
	return NewAuthService(cfg, f.db, f.referral, f.log)
}

func TestRegisterWithReferralCode(t *testing.T) {
	f := newFixture(t)
	s := f.auth()

	sponsor, _, err := s.Register(ctx(), RegisterInput{Email: "Sponsor@Example.com", Username: "sponsor", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "sponsor@example.com", sponsor.Email)
	assert.NotEmpty(t, sponsor.ReferralCode)

	u, pair, err := s.Register(ctx(), RegisterInput{Email: "new@example.com", Username: "newbie", Password: "secret1", ReferralCode: sponsor.ReferralCode})
	require.NoError(t, err)
	require.NotNil(t, u.ReferredBy)
	assert.Equal(t, sponsor.ID, *u.ReferredBy)
	assert.NotEqual(t, sponsor.ReferralCode, u.ReferralCode)

	claims, err := auth.ParseAccessToken(&s.cfg.JWT, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)

	var wallets int64
	require.NoError(t, f.db.Model(&models.Wallet{}).Count(&wallets).Error)
	assert.Equal(t, int64(2), wallets)
}

func TestRegisterRejections(t *testing.T) {
	f := newFixture(t)
	s := f.auth()
	_, _, err := s.Register(ctx(), RegisterInput{Email: "a@example.com", Username: "a", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = s.Register(ctx(), RegisterInput{Email: "A@example.com", Username: "b", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrEmailExists)
	_, _, err = s.Register(ctx(), RegisterInput{Email: "b@example.com", Username: "a", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrUsernameExists)
	_, _, err = s.Register(ctx(), RegisterInput{Email: "c@example.com", Username: "c", Password: "123"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, _, err = s.Register(ctx(), RegisterInput{Email: "d@example.com", Username: "d", Password: "secret1", ReferralCode: "NOSUCH"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	var n int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestLoginRefreshAndPasswordChange(t *testing.T) {
	f := newFixture(t)
	s := f.auth()
	u, _, err := s.Register(ctx(), RegisterInput{Email: "login@example.com", Username: "login", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = s.Login(ctx(), "login@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = s.Login(ctx(), "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, pair, err := s.Login(ctx(), " LOGIN@example.com ", "secret1")
	require.NoError(t, err)
	fresh, err := s.Refresh(ctx(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)
	_, err = s.Refresh(ctx(), pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	assert.ErrorIs(t, s.ChangePassword(ctx(), u.ID, "wrong", "another1"), domain.ErrInvalidCredentials)
	assert.Equal(t, domain.KindValidation, domain.KindOf(s.ChangePassword(ctx(), u.ID, "secret1", "123")))
	require.NoError(t, s.ChangePassword(ctx(), u.ID, "secret1", "another1"))
	_, _, err = s.Login(ctx(), "login@example.com", "another1")
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	_, _, err = s.Login(ctx(), "login@example.com", "another1")
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
}

func TestProfileUpdates(t *testing.T) {
	f := newFixture(t)
	s := f.auth()
	u, _, err := s.Register(ctx(), RegisterInput{Email: "p@example.com", Username: "profile", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateFCMToken(ctx(), u.ID, " device-token "))
	require.NoError(t, s.LinkTelegram(ctx(), u.ID, 4242))
	me, err := s.Me(ctx(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "device-token", me.FCMToken)
	require.NotNil(t, me.TelegramChatID)
	assert.Equal(t, int64(4242), *me.TelegramChatID)

	require.NoError(t, s.LinkTelegram(ctx(), u.ID, 0))
	me, err = s.Me(ctx(), u.ID)
	require.NoError(t, err)
	assert.Nil(t, me.TelegramChatID)

	_, err = s.Me(ctx(), 9999)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
