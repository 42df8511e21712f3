package handler

import (
	"net/http"

	"vipearn/internal/middleware"
	"vipearn/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WalletHandler struct {
	ledger *service.LedgerService
	log    *zap.Logger
}

func NewWalletHandler(ledger *service.LedgerService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, log: log.Named("wallet-handler")}
}

func (h *WalletHandler) Get(c *gin.Context) {
	w, err := h.ledger.Wallet(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"wallet": w})
}

// Transactions lists ledger rows, newest first, optionally filtered by ?type=.
func (h *WalletHandler) Transactions(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.ledger.Transactions(c.Request.Context(), middleware.GetUserID(c), c.Query("type"), limit, offset)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"transactions": list, "limit": limit, "offset": offset})
}
