package handlers

import (
	"errors"
	"net/http"

	"cheesecave/internal/service"

	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// signIn trades operator credentials for a bearer token. Unknown operators
// and wrong passwords get the same answer.
func (h *Handler) signIn(c *gin.Context) {
	var in signInRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		if h.log != nil {
			h.log.Infow("sign_in_bad_request", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.services.GenerateToken(c.Request.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, service.ErrInvalidPassword), errors.Is(err, service.ErrOperatorNotFound):
		if h.log != nil {
			h.log.Infow("sign_in_rejected", "username", in.Username, "remote", c.ClientIP())
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "sign-in unavailable", "sign_in_failed", err, "username", in.Username)
	default:
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}
