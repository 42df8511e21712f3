package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vipearn/internal/domain"
	"vipearn/internal/metrics"
	"vipearn/internal/models"
	"vipearn/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	deliverTimeout = 15 * time.Second
	dedupeTTL      = 24 * time.Hour
)

// Channel pushes a persisted notification to one delivery surface.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, u *models.User, n *models.Notification) error
}

// Deduper reports whether key was already claimed, claiming it otherwise.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// RedisDeduper claims keys with SETNX so only the first sender wins.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: dedupeTTL}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type notifyJob struct {
	userID   uint
	template string
	data     map[string]interface{}
}

// NotificationService is the asynchronous Notifier. Send enqueues and returns;
// a worker goroutine persists the row and fans it out to every channel.
// Delivery errors are logged and counted, never returned.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	deduper  Deduper
	channels []Channel
	metrics  *metrics.Metrics
	log      *zap.Logger

	queue   chan notifyJob
	mu      sync.Mutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewNotificationService(db *gorm.DB, deduper Deduper, m *metrics.Metrics, log *zap.Logger, queueSize int, channels ...Channel) *NotificationService {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &NotificationService{
		repo:     repository.NewNotificationRepository(db),
		userRepo: repository.NewUserRepository(db),
		deduper:  deduper,
		channels: channels,
		metrics:  m,
		log:      log.Named("notify"),
		queue:    make(chan notifyJob, queueSize),
	}
}

// Start launches the delivery worker.
func (s *NotificationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for job := range s.queue {
			s.process(job)
		}
	}()
}

// Stop closes the queue and waits for queued notifications to be delivered.
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *NotificationService) Send(userID uint, template string, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("notification after shutdown dropped", zap.Uint("user-id", userID), zap.String("template", template))
		return
	}
	select {
	case s.queue <- notifyJob{userID: userID, template: template, data: data}:
	default:
		s.metrics.Notification("queue", "dropped")
		s.log.Warn("notification queue full, dropping", zap.Uint("user-id", userID), zap.String("template", template))
	}
}

func (s *NotificationService) process(job notifyJob) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	log := s.log.With(zap.Uint("user-id", job.userID), zap.String("template", job.template))

	if ref, ok := job.data["reference"]; ok && s.deduper != nil {
		key := fmt.Sprintf("notify:%s:%d:%v", job.template, job.userID, ref)
		seen, err := s.deduper.Seen(ctx, key)
		if err != nil {
			log.Warn("dedupe check failed, sending anyway", zap.Error(err))
		} else if seen {
			s.metrics.Notification("dedupe", "skipped")
			return
		}
	}

	title, body := render(job.template, job.data)
	n := &models.Notification{
		UserID: job.userID,
		Type:   job.template,
		Title:  title,
		Body:   body,
	}
	if job.data != nil {
		b, _ := json.Marshal(job.data)
		n.Data = string(b)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.metrics.Notification("store", "error")
		log.Error("persist notification failed", zap.Error(err))
		return
	}

	u, err := s.userRepo.GetByID(ctx, job.userID)
	if err != nil {
		log.Warn("notification recipient lookup failed", zap.Error(err))
		return
	}
	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, u, n); err != nil {
			s.metrics.Notification(ch.Name(), "error")
			log.Warn("notification delivery failed", zap.String("channel", ch.Name()), zap.Error(err))
			continue
		}
		s.metrics.Notification(ch.Name(), "ok")
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("NOTIFICATION_NOT_FOUND", "notification not found")
	}
	return nil
}
