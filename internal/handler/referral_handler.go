package handler

import (
	"net/http"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReferralHandler struct {
	svc *service.ReferralService
	log *zap.Logger
}

func NewReferralHandler(svc *service.ReferralService, log *zap.Logger) *ReferralHandler {
	return &ReferralHandler{svc: svc, log: log.Named("referral-handler")}
}

// Summary returns the referral code, per-level totals and recent commissions.
func (h *ReferralHandler) Summary(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"referrals": sum})
}
