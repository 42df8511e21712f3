package handler

import (
	"net/http"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VipHandler struct {
	svc *service.VipService
	log *zap.Logger
}

func NewVipHandler(svc *service.VipService, log *zap.Logger) *VipHandler {
	return &VipHandler{svc: svc, log: log.Named("vip-handler")}
}

func (h *VipHandler) Levels(c *gin.Context) {
	levels, err := h.svc.ListLevels(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"levels": levels})
}

func (h *VipHandler) Current(c *gin.Context) {
	uv, err := h.svc.Current(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"membership": uv})
}

// Quote prices a tier for the caller, upgrade-aware.
func (h *VipHandler) Quote(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	q, err := h.svc.Quote(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"quote": q})
}

func (h *VipHandler) Purchase(c *gin.Context) {
	var req struct {
		VipLevelID uint `json:"vip_level_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "vip_level_id is required")
		return
	}
	res, err := h.svc.Purchase(c.Request.Context(), middleware.GetUserID(c), req.VipLevelID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"purchase": res})
}
