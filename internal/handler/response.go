package handler

import (
	"net/http"
	"strconv"

	"vipearn/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateConflict:
		return http.StatusConflict
	case domain.KindIntegrity:
		return http.StatusUnprocessableEntity
	case domain.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Unclassified errors are logged and hidden
// behind a generic message.
func fail(c *gin.Context, log *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	body := gin.H{"success": false, "error": domain.Message(err)}

	var de *domain.Error
	if errors.As(err, &de) {
		body["code"] = de.Code
	}
	var ce *domain.CooldownError
	if errors.As(err, &ce) {
		body["code"] = "COOLDOWN_ACTIVE"
		body["remaining_hours"] = ce.RemainingHours()
		body["remaining_seconds"] = int64(ce.Remaining.Seconds())
	}
	if kind == domain.KindUnknown {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func ok(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func paging(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
