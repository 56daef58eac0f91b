package handlers

import (
	"errors"
	"net/http"

	"cheesecave/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errGetState    = "failed to load state"
	errPressButton = "failed to press button"
	errOffline     = "appliance is not running"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrApplianceOffline) {
			h.logAndJSONError(c, http.StatusServiceUnavailable, errOffline, "get_state_offline", err)
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// pressButton feeds a remote press into the same dispatcher the physical
// buttons use.
func (h *Handler) pressButton(c *gin.Context) {
	button := c.Param("button")
	res, err := h.services.Panel.Press(c.Request.Context(), button)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownButton):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrApplianceOffline):
		h.logAndJSONError(c, http.StatusServiceUnavailable, errOffline, "press_button_offline", err, "button", button)
		return
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errPressButton, "press_button_failed", err, "button", button)
		return
	}
	if h.log != nil {
		h.log.Infow("remote_button_pressed", "button", button, "operator_id", operatorID(c), "from", res.From, "to", res.To)
	}
	c.JSON(http.StatusOK, res)
}
