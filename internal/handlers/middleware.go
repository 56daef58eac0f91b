package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const operatorIDKey = "operatorId"

const (
	errMissingAuth   = "missing Authorization header"
	errMalformedAuth = "invalid Authorization header format"
	errRejectedToken = "invalid or expired token"
)

// operatorIDMiddleware guards the remote panel: it requires a bearer token
// issued by sign-in and stores the operator ID under operatorIDKey.
func (h *Handler) operatorIDMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		h.rejectOperator(c, errMissingAuth, nil)
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		h.rejectOperator(c, errMalformedAuth, nil)
		return
	}

	id, err := h.services.ParseToken(token)
	if err != nil {
		h.rejectOperator(c, errRejectedToken, err)
		return
	}

	c.Set(operatorIDKey, id)
	c.Next()
}

func (h *Handler) rejectOperator(c *gin.Context, msg string, err error) {
	if h.log != nil {
		h.log.Warnw("operator_rejected", "reason", msg, "path", c.FullPath(), "remote", c.ClientIP(), "err", err)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// operatorID returns the authenticated operator, or 0 outside the guarded
// group.
func operatorID(c *gin.Context) int {
	return c.GetInt(operatorIDKey)
}
