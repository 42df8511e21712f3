package handler

import (
	"net/http"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc *service.NotificationService
	log *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, log: log.Named("notification-handler")}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, offset := paging(c)
	list, err := h.svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	unread, err := h.svc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, nil)
}
