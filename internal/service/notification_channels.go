package service

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"vipearn/config"
	"vipearn/internal/models"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// UserBroadcaster pushes a payload to a user's open realtime connections.
type UserBroadcaster interface {
	BroadcastToUser(userID uint, payload interface{}) int
}

// RealtimeChannel forwards notifications to connected websocket clients.
type RealtimeChannel struct {
	hub UserBroadcaster
}

func NewRealtimeChannel(hub UserBroadcaster) *RealtimeChannel {
	return &RealtimeChannel{hub: hub}
}

func (c *RealtimeChannel) Name() string { return "websocket" }

func (c *RealtimeChannel) Deliver(_ context.Context, u *models.User, n *models.Notification) error {
	c.hub.BroadcastToUser(u.ID, map[string]interface{}{
		"type":         "notification",
		"notification": n,
	})
	return nil
}

// PushChannel sends FCM pushes to users that registered a device token.
type PushChannel struct {
	fcm *FCMService
}

func NewPushChannel(fcm *FCMService) *PushChannel {
	return &PushChannel{fcm: fcm}
}

func (c *PushChannel) Name() string { return "fcm" }

func (c *PushChannel) Deliver(ctx context.Context, u *models.User, n *models.Notification) error {
	if u.FCMToken == "" {
		return nil
	}
	return c.fcm.SendToUser(ctx, u.FCMToken, n.Type, n.Title, n.Body, map[string]interface{}{
		"notification_id": n.ID,
	})
}

// TelegramChannel messages users that linked a Telegram chat.
type TelegramChannel struct {
	bot *telego.Bot
}

// NewTelegramChannel returns nil when no bot token is configured.
func NewTelegramChannel(token string) (*TelegramChannel, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramChannel{bot: bot}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Deliver(ctx context.Context, u *models.User, n *models.Notification) error {
	if u.TelegramChatID == nil {
		return nil
	}
	text := n.Title
	if n.Body != "" {
		text += "\n\n" + n.Body
	}
	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(*u.TelegramChatID), text))
	return err
}

// EmailChannel sends plain-text mail through an SMTP relay.
type EmailChannel struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel returns nil when no SMTP host is configured.
func NewEmailChannel(cfg config.SMTPConfig) *EmailChannel {
	if cfg.Host == "" {
		return nil
	}
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(_ context.Context, u *models.User, n *models.Notification) error {
	if u.Email == "" {
		return nil
	}
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", u.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.Title)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(n.Body)
	return c.send(c.cfg.Host+":"+c.cfg.Port, auth, c.cfg.From, []string{u.Email}, []byte(msg.String()))
}
