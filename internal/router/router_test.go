package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vipearn/config"
	"vipearn/internal/auth"
	"vipearn/internal/domain"
	"vipearn/internal/metrics"
	"vipearn/internal/models"
	"vipearn/internal/service"
	"vipearn/internal/testdb"
	"vipearn/internal/worker"
	"vipearn/internal/ws"
	"vipearn/pkg/cloudinary"
	"vipearn/pkg/explorer"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type unknownOracle struct{}

func (unknownOracle) CheckTransactionAcrossNetworks(context.Context, string) (*explorer.Result, error) {
	return &explorer.Result{}, nil
}

type fakeProofs struct {
	uploads int
	deleted []string
}

func (p *fakeProofs) UploadProof(_ context.Context, file io.Reader, userID uint) (*cloudinary.Upload, error) {
	if _, err := io.Copy(io.Discard, file); err != nil {
		return nil, err
	}
	p.uploads++
	id := cloudinary.ProofPublicID(userID)
	return &cloudinary.Upload{URL: "https://cdn.example.com/" + id + ".png", PublicID: id}, nil
}

func (p *fakeProofs) Delete(_ context.Context, publicID string) error {
	p.deleted = append(p.deleted, publicID)
	return nil
}

type api struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	r      *gin.Engine
	proofs *fakeProofs
}

func newAPI(t *testing.T) *api {
	t.Helper()
	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret: "access", RefreshSecret: "refresh",
			AccessExpiry: time.Minute, RefreshExpiry: time.Hour, Issuer: "vipearn",
		},
		Session: config.SessionConfig{TaskDuration: time.Hour, VipDuration: 24 * time.Hour, Cooldown: 24 * time.Hour},
	}
	db := testdb.New(t)
	log := zaptest.NewLogger(t)
	m := metrics.New()

	notifications := service.NewNotificationService(db, nil, m, log, 64)
	notifications.Start()
	t.Cleanup(notifications.Stop)

	ledger := service.NewLedgerService(db, m, log)
	referral := service.NewReferralService(db, ledger, notifications, m, log)
	vip := service.NewVipService(db, ledger, referral, notifications, log)
	sessions := service.NewSessionService(db, ledger, notifications, m, log, cfg.Session.Cooldown)
	t.Cleanup(sessions.Stop)
	deposits := service.NewDepositService(db, ledger, unknownOracle{}, notifications, m, log, service.DepositSettings{MinAmount: decimal.NewFromInt(10)})
	withdrawals := service.NewWithdrawalService(db, ledger, notifications, m, log, decimal.NewFromInt(10))
	detector := worker.NewRunner("deposit-detector", time.Hour, deposits.DetectPending, log, m)
	t.Cleanup(func() { detector.Stop() })
	admin := service.NewAdminService(db, ledger, referral, withdrawals, notifications, detector, log)

	proofs := &fakeProofs{}
	r := Setup(cfg, Deps{
		DB: db, Log: log, Metrics: m, Hub: ws.NewHub(), Proofs: proofs,
		Auth:          service.NewAuthService(cfg, db, referral, log),
		Ledger:        ledger,
		Referral:      referral,
		Vip:           vip,
		Sessions:      sessions,
		Deposits:      deposits,
		Withdrawals:   withdrawals,
		Notifications: notifications,
		Admin:         admin,
	})
	return &api{t: t, cfg: cfg, db: db, r: r, proofs: proofs}
}

func (a *api) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	out := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

// register signs a user up and returns their id and access token.
func (a *api) register(name, code string) (uint, string) {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": name + "@example.com", "username": name, "password": "secret1", "referral_code": code,
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	user := body["user"].(map[string]interface{})
	tokens := body["tokens"].(map[string]interface{})
	return uint(user["id"].(float64)), tokens["access_token"].(string)
}

func (a *api) adminToken() string {
	a.t.Helper()
	u := testdb.User(a.t, a.db, "root", nil)
	require.NoError(a.t, a.db.Model(&models.User{}).Where("id = ?", u.ID).Update("role", domain.RoleAdmin).Error)
	tok, err := auth.GenerateAccessToken(&a.cfg.JWT, u.ID, u.Username, domain.RoleAdmin)
	require.NoError(a.t, err)
	return tok
}

func decField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(fmt.Sprint(m[key]))
	require.NoError(t, err)
	return d
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPI(t)
	status, body := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthErrorsUseEnvelope(t *testing.T) {
	a := newAPI(t)

	status, body := a.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, body = a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	status, body = a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "x@example.com", "username": "xavier", "password": "secret1", "referral_code": "NOPE",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REFERRAL_CODE", body["code"])

	a.register("dupe", "")
	status, body = a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "dupe@example.com", "username": "dupe2", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EMAIL_EXISTS", body["code"])

	status, body = a.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "dupe@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	_, userTok := a.register("regular", "")
	status, _ = a.do(http.MethodGet, "/api/v1/admin/stats", userTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestEarningFlow(t *testing.T) {
	a := newAPI(t)
	admin := a.adminToken()
	level := testdb.Level(t, a.db, "VIP1", "180", "6", 1)

	_, sponsorTok := a.register("sponsor", "")
	status, body := a.do(http.MethodGet, "/api/v1/me/referrals", sponsorTok, nil)
	require.Equal(t, http.StatusOK, status)
	code := body["referrals"].(map[string]interface{})["referral_code"].(string)

	userID, userTok := a.register("member", code)

	status, body = a.do(http.MethodPost, "/api/v1/vip/purchase", userTok, gin.H{"vip_level_id": level.ID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body["code"])

	status, body = a.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/wallets/%d/adjust", userID), admin, gin.H{"amount": "200", "reason": "promo"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = a.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/wallets/%d/adjust", userID), admin, gin.H{"amount": "-500"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "NEGATIVE_BALANCE", body["code"])

	status, body = a.do(http.MethodPost, "/api/v1/vip/purchase", userTok, gin.H{"vip_level_id": level.ID})
	require.Equal(t, http.StatusOK, status, body)

	status, body = a.do(http.MethodGet, "/api/v1/me/wallet", sponsorTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decField(t, body["wallet"].(map[string]interface{}), "balance").Equal(decimal.NewFromInt(18)))

	status, body = a.do(http.MethodPost, "/api/v1/tasks/session/start", userTok, nil)
	require.Equal(t, http.StatusCreated, status, body)
	status, body = a.do(http.MethodPost, "/api/v1/vip/session/start", userTok, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SESSION_ALREADY_ACTIVE", body["code"])

	status, body = a.do(http.MethodPost, "/api/v1/tasks/session/complete", userTok, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SESSION_NOT_FINISHED", body["code"])

	status, body = a.do(http.MethodGet, "/api/v1/tasks/session/status", userTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", body["status"].(map[string]interface{})["state"])

	status, body = a.do(http.MethodGet, "/api/v1/me/wallet/transactions", userTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["transactions"], 2)

	status, body = a.do(http.MethodGet, "/api/v1/admin/users?search=member", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestCooldownResponse(t *testing.T) {
	a := newAPI(t)
	level := testdb.Level(t, a.db, "VIP1", "180", "6", 1)
	userID, userTok := a.register("rested", "")
	require.NoError(t, a.db.Create(&models.UserVip{
		UserID: userID, VipLevelID: level.ID, TotalPaid: decimal.NewFromInt(180), IsActive: true, PurchasedAt: time.Now().UTC(),
	}).Error)
	end := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, a.db.Create(&models.EarningsSession{
		UserID: userID, VipLevelID: level.ID, Surface: domain.SurfaceTask,
		StartTime: end.Add(-time.Hour), ExpectedEndTime: end, ActualEndTime: &end,
		Status: domain.SessionStatusCompleted, DailyEarningRate: decimal.NewFromInt(6), TotalEarnings: decimal.NewFromInt(6),
	}).Error)

	status, body := a.do(http.MethodPost, "/api/v1/vip/session/start", userTok, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COOLDOWN_ACTIVE", body["code"])
	assert.Equal(t, float64(23), body["remaining_hours"])
}

func TestWithdrawalReviewFlow(t *testing.T) {
	a := newAPI(t)
	admin := a.adminToken()
	userID, userTok := a.register("saver", "")

	status, body := a.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/wallets/%d/adjust", userID), admin, gin.H{"amount": "100"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = a.do(http.MethodPost, "/api/v1/withdrawals", userTok, gin.H{
		"amount": "40", "address": "0x4444444444444444444444444444444444444444", "network": "BSC",
	})
	require.Equal(t, http.StatusCreated, status, body)
	id := uint(body["withdrawal"].(map[string]interface{})["id"].(float64))

	status, body = a.do(http.MethodPost, "/api/v1/withdrawals", userTok, gin.H{
		"amount": "40", "address": "0x4444444444444444444444444444444444444444", "network": "BSC",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "WITHDRAWAL_PENDING", body["code"])

	status, body = a.do(http.MethodGet, "/api/v1/admin/withdrawals", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["withdrawals"], 1)

	status, body = a.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/approve", id), admin, gin.H{"tx_hash": "0xdone"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = a.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/approve", id), admin, gin.H{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOT_PENDING", body["code"])

	status, body = a.do(http.MethodGet, "/api/v1/me/wallet", userTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decField(t, body["wallet"].(map[string]interface{}), "balance").Equal(decimal.NewFromInt(60)))

	status, body = a.do(http.MethodGet, "/api/v1/admin/audit-log", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["audit_log"], 2)
}

func TestAdminSettingsAndDetector(t *testing.T) {
	a := newAPI(t)
	admin := a.adminToken()

	status, body := a.do(http.MethodPut, "/api/v1/admin/settings/"+domain.SettingReferralRateLevel1, admin, gin.H{"value": "0.2"})
	require.Equal(t, http.StatusOK, status, body)
	status, body = a.do(http.MethodPut, "/api/v1/admin/settings/bogus", admin, gin.H{"value": "1"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "SETTING_NOT_FOUND", body["code"])

	status, body = a.do(http.MethodPost, "/api/v1/admin/detector/start", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["changed"])
	status, body = a.do(http.MethodPost, "/api/v1/admin/detector/stop", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["changed"])
	status, body = a.do(http.MethodGet, "/api/v1/admin/detector", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["detector"].(map[string]interface{})["running"])

	status, _ = a.do(http.MethodGet, "/api/v1/admin/stats", admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func (a *api) submitProof(token, hash string) (int, map[string]interface{}) {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(a.t, mw.WriteField("tx_hash", hash))
	fw, err := mw.CreateFormFile("proof", "proof.png")
	require.NoError(a.t, err)
	_, err = fw.Write([]byte("\x89PNG fake image"))
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	out := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func TestDepositSubmission(t *testing.T) {
	a := newAPI(t)
	_, tok := a.register("depositor", "")
	hash := fmt.Sprintf("0x%064x", 7)

	status, body := a.submitProof(tok, hash)
	require.Equal(t, http.StatusCreated, status, body)
	dep := body["deposit"].(map[string]interface{})
	assert.Equal(t, domain.DepositStatusPending, dep["status"])
	assert.Contains(t, dep["proof_url"], "proof_")

	status, body = a.submitProof(tok, hash)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_DEPOSIT", body["code"])
	assert.Equal(t, 2, a.proofs.uploads)
	assert.Len(t, a.proofs.deleted, 1)

	status, body = a.do(http.MethodPost, "/api/v1/deposits", tok, gin.H{"tx_hash": "nothex"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_TX_HASH", body["code"])

	id := uint(dep["id"].(float64))
	status, body = a.do(http.MethodPost, fmt.Sprintf("/api/v1/deposits/%d/verify", id), tok, nil)
	require.Equal(t, http.StatusOK, status, body)

	_, other := a.register("snoop", "")
	status, _ = a.do(http.MethodPost, fmt.Sprintf("/api/v1/deposits/%d/verify", id), other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = a.do(http.MethodGet, "/api/v1/deposits", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["deposits"], 1)
}
