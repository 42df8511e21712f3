package service

import (
	"context"
	"sync"
	"testing"

	"vipearn/internal/domain"
	"vipearn/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureChannel struct {
	name string
	err  error
	mu   sync.Mutex
	got  []*models.Notification
}

func (c *captureChannel) Name() string { return c.name }

func (c *captureChannel) Deliver(_ context.Context, _ *models.User, n *models.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return c.err
}

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	users []uint
}

func (b *recordingBroadcaster) BroadcastToUser(userID uint, _ interface{}) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, userID)
	return 1
}

func TestNotificationDeliveryAndDedupe(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "listener", nil)
	ok := &captureChannel{name: "ok"}
	broken := &captureChannel{name: "broken", err: errors.New("push rejected")}
	hub := &recordingBroadcaster{}
	svc := NewNotificationService(f.db, &memDeduper{}, nil, f.log, 8, ok, broken, NewRealtimeChannel(hub))
	svc.Start()

	data := map[string]interface{}{"amount": "6", "reference": "session:1"}
	svc.Send(u.ID, domain.TemplateSessionCompleted, data)
	svc.Send(u.ID, domain.TemplateSessionCompleted, data)
	svc.Send(u.ID, "custom_event", nil)
	svc.Stop()
	svc.Send(u.ID, domain.TemplateSessionCompleted, nil)

	list, err := svc.List(ctx(), u.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "custom_event", list[0].Title)
	assert.Equal(t, "Earning session completed", list[1].Title)
	assert.Contains(t, list[1].Body, "6 USDT")
	assert.Contains(t, list[1].Data, "session:1")

	assert.Equal(t, 2, ok.count())
	assert.Equal(t, 2, broken.count())
	assert.Equal(t, []uint{u.ID, u.ID}, hub.users)

	unread, err := svc.UnreadCount(ctx(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, svc.MarkRead(ctx(), list[0].ID, u.ID))
	require.NoError(t, svc.MarkRead(ctx(), list[0].ID, u.ID))
	unread, err = svc.UnreadCount(ctx(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	other := f.user(t, "other", nil)
	err = svc.MarkRead(ctx(), list[1].ID, other.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestRenderTemplates(t *testing.T) {
	title, body := render(domain.TemplateVipPurchased, map[string]interface{}{"level": "VIP2", "charge": "220", "is_upgrade": true})
	assert.Equal(t, "VIP upgraded", title)
	assert.Contains(t, body, "220 USDT")

	title, _ = render(domain.TemplateVipPurchased, map[string]interface{}{"level": "VIP1", "charge": "180"})
	assert.Equal(t, "VIP activated", title)

	for name := range templates {
		title, _ := render(name, map[string]interface{}{})
		assert.NotEmpty(t, title, name)
	}
}
