package handler

import (
	"net/http"
	"strings"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalHandler struct {
	svc *service.WithdrawalService
	log *zap.Logger
}

func NewWithdrawalHandler(svc *service.WithdrawalService, log *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc, log: log.Named("withdrawal-handler")}
}

type WithdrawalRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address" binding:"required"`
	Network string          `json:"network" binding:"required"`
}

func (h *WithdrawalHandler) Request(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount, address and network are required")
		return
	}
	w, err := h.svc.Request(c.Request.Context(), middleware.GetUserID(c), req.Amount,
		strings.TrimSpace(req.Address), strings.ToUpper(strings.TrimSpace(req.Network)))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"withdrawal": w})
}

func (h *WithdrawalHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.svc.List(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"withdrawals": list, "limit": limit, "offset": offset})
}
