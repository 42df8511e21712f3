package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/metrics"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Completion triggers, used for logging and metrics.
const (
	TriggerManual = "manual"
	TriggerTimer  = "timer"
	TriggerSweep  = "sweep"
)

// Session states reported by GetStatus.
const (
	StateActive   = "active"
	StateCooldown = "cooldown"
	StateReady    = "ready"
	StateNoVip    = "no_vip"
)

const sweepBatch = 500

type CompletionResult struct {
	Session  *models.EarningsSession `json:"session"`
	Credited bool                    `json:"credited"`
	Amount   decimal.Decimal         `json:"amount"`
}

// StatusView is a read-only snapshot of a user's earning state.
// CurrentEarnings is a display estimate; completion always credits the full rate.
type StatusView struct {
	State             string                  `json:"state"`
	Session           *models.EarningsSession `json:"session,omitempty"`
	ElapsedSeconds    int64                   `json:"elapsed_seconds"`
	RemainingSeconds  int64                   `json:"remaining_seconds"`
	Progress          float64                 `json:"progress"`
	CurrentEarnings   decimal.Decimal         `json:"current_earnings"`
	DailyEarningRate  decimal.Decimal         `json:"daily_earning_rate"`
	CooldownRemaining int64                   `json:"cooldown_remaining_seconds,omitempty"`
	CooldownHours     int                     `json:"cooldown_hours,omitempty"`
	NextAvailableAt   *time.Time              `json:"next_available_at,omitempty"`
}

// SessionService runs the earning session lifecycle for both surfaces. The
// surfaces differ only in the duration passed to StartSession.
type SessionService struct {
	db          *gorm.DB
	sessionRepo *repository.SessionRepository
	vipRepo     *repository.VipRepository
	txRepo      *repository.TransactionRepository
	settingRepo *repository.SettingRepository
	ledger      *LedgerService
	notifier    Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger
	cooldown    time.Duration
	now         Clock

	mu      sync.Mutex
	timers  map[uint]*time.Timer
	stopped bool
}

func NewSessionService(db *gorm.DB, ledger *LedgerService, notifier Notifier, m *metrics.Metrics, log *zap.Logger, cooldown time.Duration) *SessionService {
	if notifier == nil {
		notifier = NopNotifier
	}
	return &SessionService{
		db:          db,
		sessionRepo: repository.NewSessionRepository(db),
		vipRepo:     repository.NewVipRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		ledger:      ledger,
		notifier:    notifier,
		metrics:     m,
		log:         log.Named("session"),
		cooldown:    cooldown,
		now:         utcNow,
		timers:      make(map[uint]*time.Timer),
	}
}

func (s *SessionService) SetClock(c Clock) { s.now = c }

// cooldownWindow prefers the admin setting over the configured default.
func (s *SessionService) cooldownWindow(ctx context.Context) time.Duration {
	fallback := decimal.NewFromFloat(s.cooldown.Hours())
	h, err := s.settingRepo.Decimal(ctx, domain.SettingSessionCooldownHours, fallback)
	if err != nil {
		s.log.Warn("cooldown setting ignored", zap.Error(err))
	}
	return time.Duration(h.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart())
}

// StartSession opens an ACTIVE session of the given length for the user and
// arms a completion timer.
func (s *SessionService) StartSession(ctx context.Context, userID uint, surface string, duration time.Duration) (*models.EarningsSession, error) {
	if surface != domain.SurfaceTask && surface != domain.SurfaceVip {
		return nil, domain.Validation("INVALID_SURFACE", fmt.Sprintf("unknown session surface %q", surface))
	}
	if duration <= 0 {
		return nil, domain.Validation("INVALID_DURATION", "session duration must be positive")
	}
	cooldown := s.cooldownWindow(ctx)
	now := s.now()

	var sess *models.EarningsSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The membership row lock serialises concurrent starts for one user.
		uv, err := s.vipRepo.WithTx(tx).LockMembership(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && (!uv.IsActive || uv.VipLevel == nil)) {
			return domain.ErrNoActiveVip
		}
		if err != nil {
			return errors.Wrap(err, "lock membership")
		}

		sessions := s.sessionRepo.WithTx(tx)
		if _, err := sessions.GetActive(ctx, userID); err == nil {
			return domain.ErrSessionAlreadyActive
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		last, err := sessions.GetLastCompleted(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if last != nil {
			if since := now.Sub(*last.ActualEndTime); since < cooldown {
				return &domain.CooldownError{Remaining: cooldown - since}
			}
		}

		sess = &models.EarningsSession{
			UserID:           userID,
			VipLevelID:       uv.VipLevelID,
			Surface:          surface,
			StartTime:        now,
			ExpectedEndTime:  now.Add(duration),
			Status:           domain.SessionStatusActive,
			DailyEarningRate: uv.VipLevel.DailyEarning,
			TotalEarnings:    decimal.Zero,
		}
		return sessions.Create(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionStarted(surface)
	s.log.Info("session started",
		zap.Uint("user-id", userID),
		zap.Uint("session-id", sess.ID),
		zap.String("surface", surface),
		zap.Time("expected-end", sess.ExpectedEndTime))
	s.schedule(sess.ID, sess.ExpectedEndTime)
	return sess, nil
}

// CompleteSession finishes an ACTIVE session and credits its rate exactly
// once. Completing a session that is no longer ACTIVE is a no-op, and an
// existing VIP_EARNINGS transaction for the session closes it without paying.
func (s *SessionService) CompleteSession(ctx context.Context, sessionID uint) (*CompletionResult, error) {
	return s.complete(ctx, sessionID, TriggerManual)
}

func (s *SessionService) complete(ctx context.Context, sessionID uint, trigger string) (*CompletionResult, error) {
	ref := fmt.Sprintf("session:%d", sessionID)
	res := &CompletionResult{Amount: decimal.Zero}
	transitioned := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessionRepo.WithTx(tx)
		sess, err := sessions.LockByID(ctx, sessionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		res.Session = sess
		if sess.Status != domain.SessionStatusActive {
			return nil
		}

		paid, err := s.txRepo.WithTx(tx).ExistsForReference(ctx, sess.UserID, domain.TxTypeVipEarnings, ref)
		if err != nil {
			return err
		}

		end := s.now()
		sess.Status = domain.SessionStatusCompleted
		sess.ActualEndTime = &end
		sess.TotalEarnings = sess.DailyEarningRate
		if err := sessions.Update(ctx, sess); err != nil {
			return errors.Wrap(err, "update session")
		}
		transitioned = true

		if paid || !sess.DailyEarningRate.IsPositive() {
			return nil
		}
		if _, err := s.ledger.AdjustBalance(ctx, tx, Adjustment{
			UserID:      sess.UserID,
			Amount:      sess.DailyEarningRate,
			Type:        domain.TxTypeVipEarnings,
			Description: fmt.Sprintf("Earning session #%d (%s)", sess.ID, sess.Surface),
			ReferenceID: ref,
		}); err != nil {
			return err
		}
		res.Credited = true
		res.Amount = sess.DailyEarningRate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cancelTimer(sessionID)
	if !transitioned {
		return res, nil
	}
	s.metrics.SessionCompleted(trigger, res.Credited)
	s.log.Info("session completed",
		zap.Uint("session-id", sessionID),
		zap.Uint("user-id", res.Session.UserID),
		zap.String("trigger", trigger),
		zap.Bool("credited", res.Credited))
	if res.Credited {
		s.notifier.Send(res.Session.UserID, domain.TemplateSessionCompleted, map[string]interface{}{
			"session_id": sessionID,
			"amount":     res.Amount.String(),
			"surface":    res.Session.Surface,
		})
	}
	return res, nil
}

// CompleteDue completes the user's active session once its end time has passed.
func (s *SessionService) CompleteDue(ctx context.Context, userID uint) (*CompletionResult, error) {
	sess, err := s.sessionRepo.GetActive(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	if s.now().Before(sess.ExpectedEndTime) {
		return nil, domain.ErrSessionNotFinished
	}
	return s.complete(ctx, sess.ID, TriggerManual)
}

func (s *SessionService) GetStatus(ctx context.Context, userID uint) (*StatusView, error) {
	now := s.now()
	view := &StatusView{CurrentEarnings: decimal.Zero, DailyEarningRate: decimal.Zero}

	sess, err := s.sessionRepo.GetActive(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if sess != nil {
		total := sess.Duration()
		elapsed := now.Sub(sess.StartTime)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > total {
			elapsed = total
		}
		progress := 0.0
		if total > 0 {
			progress = float64(elapsed) / float64(total)
		}
		view.State = StateActive
		view.Session = sess
		view.ElapsedSeconds = int64(elapsed / time.Second)
		view.RemainingSeconds = int64((total - elapsed) / time.Second)
		view.Progress = progress
		view.DailyEarningRate = sess.DailyEarningRate
		view.CurrentEarnings = sess.DailyEarningRate.Mul(decimal.NewFromFloat(progress)).Round(domain.MoneyPlaces)
		return view, nil
	}

	uv, err := s.vipRepo.GetActiveMembership(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		view.State = StateNoVip
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	if uv.VipLevel != nil {
		view.DailyEarningRate = uv.VipLevel.DailyEarning
	}

	last, err := s.sessionRepo.GetLastCompleted(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if last != nil {
		cooldown := s.cooldownWindow(ctx)
		next := last.ActualEndTime.Add(cooldown)
		if now.Before(next) {
			ce := &domain.CooldownError{Remaining: next.Sub(now)}
			view.State = StateCooldown
			view.CooldownRemaining = int64(ce.Remaining / time.Second)
			view.CooldownHours = ce.RemainingHours()
			view.NextAvailableAt = &next
			return view, nil
		}
	}
	view.State = StateReady
	return view, nil
}

// SweepDue completes every ACTIVE session past its expected end. It returns
// how many sessions it transitioned and the last error seen.
func (s *SessionService) SweepDue(ctx context.Context) (int, error) {
	due, err := s.sessionRepo.ListDue(ctx, s.now(), sweepBatch)
	if err != nil {
		return 0, errors.Wrap(err, "list due sessions")
	}
	var lastErr error
	n := 0
	for _, sess := range due {
		res, err := s.complete(ctx, sess.ID, TriggerSweep)
		if err != nil {
			lastErr = err
			s.log.Error("sweep completion failed", zap.Uint("session-id", sess.ID), zap.Error(err))
			continue
		}
		if res.Session.Status == domain.SessionStatusCompleted {
			n++
		}
	}
	if n > 0 {
		s.log.Info("swept due sessions", zap.Int("count", n))
	}
	return n, lastErr
}

func (s *SessionService) ListSessions(ctx context.Context, userID uint, surface string, limit, offset int) ([]models.EarningsSession, error) {
	return s.sessionRepo.ListByUserID(ctx, userID, surface, limit, offset)
}

// Resume re-arms completion timers for sessions that were ACTIVE when the
// process last stopped.
func (s *SessionService) Resume(ctx context.Context) error {
	active, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, sess := range active {
		s.schedule(sess.ID, sess.ExpectedEndTime)
	}
	if len(active) > 0 {
		s.log.Info("re-armed session timers", zap.Int("count", len(active)))
	}
	return nil
}

// Stop cancels all pending completion timers. Sessions left ACTIVE are picked
// up by the sweeper.
func (s *SessionService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *SessionService) schedule(sessionID uint, at time.Time) {
	d := at.Sub(s.now())
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.timers[sessionID]; ok {
		old.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, sessionID)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.complete(ctx, sessionID, TriggerTimer); err != nil {
			s.log.Error("timer completion failed", zap.Uint("session-id", sessionID), zap.Error(err))
		}
	})
}

func (s *SessionService) cancelTimer(sessionID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
}

// PendingTimers reports how many completion timers are armed.
func (s *SessionService) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
