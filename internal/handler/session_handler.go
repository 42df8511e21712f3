package handler

import (
	"net/http"
	"time"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes one earning surface. The task and VIP surfaces are
// two instances that differ only in surface name and duration.
type SessionHandler struct {
	svc      *service.SessionService
	surface  string
	duration time.Duration
	log      *zap.Logger
}

func NewSessionHandler(svc *service.SessionService, surface string, duration time.Duration, log *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, surface: surface, duration: duration, log: log.Named(surface + "-session-handler")}
}

func (h *SessionHandler) Start(c *gin.Context) {
	sess, err := h.svc.StartSession(c.Request.Context(), middleware.GetUserID(c), h.surface, h.duration)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"session": sess})
}

// Complete finishes the caller's session once its end time has passed.
func (h *SessionHandler) Complete(c *gin.Context) {
	res, err := h.svc.CompleteDue(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"result": res})
}

func (h *SessionHandler) Status(c *gin.Context) {
	view, err := h.svc.GetStatus(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": view})
}

func (h *SessionHandler) History(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.svc.ListSessions(c.Request.Context(), middleware.GetUserID(c), h.surface, limit, offset)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sessions": list, "limit": limit, "offset": offset})
}
