package handler

import (
	"net/http"
	"strings"

	"vipearn/internal/middleware"
	"vipearn/internal/service"
	"vipearn/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxProofBytes = 5 << 20

type DepositHandler struct {
	svc    *service.DepositService
	proofs cloudinary.ProofStore // nil when uploads are not configured
	log    *zap.Logger
}

func NewDepositHandler(svc *service.DepositService, proofs cloudinary.ProofStore, log *zap.Logger) *DepositHandler {
	return &DepositHandler{svc: svc, proofs: proofs, log: log.Named("deposit-handler")}
}

// Submit accepts either JSON {"tx_hash"} or a multipart form with tx_hash and
// an optional proof screenshot.
func (h *DepositHandler) Submit(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var txHash, proofURL string
	var uploaded *cloudinary.Upload

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		txHash = c.PostForm("tx_hash")
		if file, err := c.FormFile("proof"); err == nil {
			if h.proofs == nil {
				badRequest(c, "proof uploads are not enabled")
				return
			}
			if file.Size > maxProofBytes {
				badRequest(c, "proof image must be 5MB or smaller")
				return
			}
			f, err := file.Open()
			if err != nil {
				badRequest(c, "could not read proof")
				return
			}
			defer f.Close()
			up, err := h.proofs.UploadProof(c.Request.Context(), f, userID)
			if err != nil {
				h.log.Error("proof upload failed", zap.Uint("user-id", userID), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"success": false, "error": "proof upload failed"})
				return
			}
			uploaded, proofURL = up, up.URL
		}
	} else {
		var req struct {
			TxHash string `json:"tx_hash" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "tx_hash is required")
			return
		}
		txHash = req.TxHash
	}
	if strings.TrimSpace(txHash) == "" {
		badRequest(c, "tx_hash is required")
		return
	}

	d, err := h.svc.Submit(c.Request.Context(), userID, txHash, proofURL)
	if err != nil {
		if uploaded != nil {
			if derr := h.proofs.Delete(c.Request.Context(), uploaded.PublicID); derr != nil {
				h.log.Warn("orphaned proof not removed", zap.String("public-id", uploaded.PublicID), zap.Error(derr))
			}
		}
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"deposit": d})
}

func (h *DepositHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.svc.List(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deposits": list, "limit": limit, "offset": offset})
}

// Verify re-checks one of the caller's pending deposits against the chain.
func (h *DepositHandler) Verify(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		fail(c, h.log, err)
		return
	}
	d, err := h.svc.Verify(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deposit": d})
}
