package handler

import (
	"net/http"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MeHandler struct {
	auth *service.AuthService
	log  *zap.Logger
}

func NewMeHandler(auth *service.AuthService, log *zap.Logger) *MeHandler {
	return &MeHandler{auth: auth, log: log.Named("me-handler")}
}

func (h *MeHandler) Get(c *gin.Context) {
	u, err := h.auth.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"user": u})
}

// UpdateFCMToken stores the device token used for push notifications.
func (h *MeHandler) UpdateFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token is required")
		return
	}
	if err := h.auth.UpdateFCMToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// LinkTelegram stores (or with chat_id 0 clears) the chat the bot messages.
func (h *MeHandler) LinkTelegram(c *gin.Context) {
	var req struct {
		ChatID int64 `json:"chat_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "chat_id must be a number")
		return
	}
	if err := h.auth.LinkTelegram(c.Request.Context(), middleware.GetUserID(c), req.ChatID); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"linked": req.ChatID != 0})
}
