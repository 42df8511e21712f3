package handler

import (
	"net/http"
	"strconv"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminHandler struct {
	svc *service.AdminService
	log *zap.Logger
}

func NewAdminHandler(svc *service.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log.Named("admin-handler")}
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{UserID: middleware.GetUserID(c), IP: c.ClientIP()}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	signups, err := h.svc.SignupsByDay(c.Request.Context(), days)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"stats": stats, "signups": signups, "detector": h.svc.DetectorStatus()})
}

func (h *AdminHandler) Users(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := paging(c)
	users, total, err := h.svc.ListUsers(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"users": users, "total": total, "page": page})
}

func (h *AdminHandler) Transactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := paging(c)
	list, total, err := h.svc.ListTransactions(c.Request.Context(), c.Query("type"), page, limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"transactions": list, "total": total, "page": page})
}

func (h *AdminHandler) Withdrawals(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.svc.ListWithdrawals(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"withdrawals": list})
}

func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req struct {
		TxHash string `json:"tx_hash"`
	}
	_ = c.ShouldBindJSON(&req)
	w, err := h.svc.ApproveWithdrawal(c.Request.Context(), actor(c), id, req.TxHash)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"withdrawal": w})
}

func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "reason is required")
		return
	}
	w, err := h.svc.RejectWithdrawal(c.Request.Context(), actor(c), id, req.Reason)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"withdrawal": w})
}

// AdjustWallet books a signed amount; negative values debit.
func (h *AdminHandler) AdjustWallet(c *gin.Context) {
	userID, valid := idParam(c, "user_id")
	if !valid {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount must be a number")
		return
	}
	entry, err := h.svc.AdjustWallet(c.Request.Context(), actor(c), userID, req.Amount, req.Reason)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"wallet": entry.Wallet, "transaction": entry.Transaction})
}

// SetReferrer re-parents a user; a null referrer_id detaches them.
func (h *AdminHandler) SetReferrer(c *gin.Context) {
	userID, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req struct {
		ReferrerID *uint `json:"referrer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "referrer_id must be a user id or null")
		return
	}
	if err := h.svc.ChangeReferrer(c.Request.Context(), actor(c), userID, req.ReferrerID); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (h *AdminHandler) Settings(c *gin.Context) {
	list, err := h.svc.Settings(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"settings": list})
}

func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "value is required")
		return
	}
	if err := h.svc.UpdateSetting(c.Request.Context(), actor(c), c.Param("key"), req.Value); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (h *AdminHandler) DetectorStatus(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"detector": h.svc.DetectorStatus()})
}

func (h *AdminHandler) StartDetector(c *gin.Context) {
	st, changed := h.svc.StartDetector(c.Request.Context(), actor(c))
	ok(c, http.StatusOK, gin.H{"detector": st, "changed": changed})
}

func (h *AdminHandler) StopDetector(c *gin.Context) {
	st, changed := h.svc.StopDetector(c.Request.Context(), actor(c))
	ok(c, http.StatusOK, gin.H{"detector": st, "changed": changed})
}

func (h *AdminHandler) AuditLog(c *gin.Context) {
	limit, _ := paging(c)
	list, err := h.svc.AuditLog(c.Request.Context(), limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"audit_log": list})
}
