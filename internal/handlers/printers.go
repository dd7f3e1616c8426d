package handlers

import (
	"errors"
	"net/http"

	"printer_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK       = "ok"
	statusAccepted = "accepted"
	statusReset    = "reset"

	errDeviceNotFound  = "printer not found"
	errControlDisabled = "printer does not accept switch requests"
	errLoadState       = "failed to load printer state"
	errInvalidBodyPref = "invalid body: "
)

// logAndJSONError logs err under logKey and writes a JSON error body.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		if httpCode >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Infow(logKey, fields...)
		}
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		h.logAndJSONError(c, http.StatusNotFound, errDeviceNotFound, logKey, err, kv...)
	case errors.Is(err, service.ErrControlNotExposed):
		h.logAndJSONError(c, http.StatusConflict, errControlDisabled, logKey, err, kv...)
	case errors.Is(err, service.ErrInvalidTimeRange):
		h.logAndJSONError(c, http.StatusBadRequest, err.Error(), logKey, err, kv...)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "internal error", logKey, err, kv...)
	}
}

// SwitchRequest is the payload of a switch set request.
type SwitchRequest struct {
	// Requested switch value. The engine acknowledges it and then restores its own value.
	On *bool `json:"on" binding:"required" example:"true"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List printers
// @Tags         printers
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, printers"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/printers [get]
// @Security     BearerAuth
func (h *Handler) listPrinters(c *gin.Context) {
	states, err := h.services.Monitoring.ListStates(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadState, "printers_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(states),
		"printers": states,
	})
}

// @Summary      Get printer state
// @Tags         printers
// @Produce      json
// @Param        id   path      string  true  "Printer id"
// @Success      200  {object}  models.DeviceState
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/printers/{id} [get]
// @Security     BearerAuth
func (h *Handler) getPrinter(c *gin.Context) {
	id := c.Param("id")
	st, err := h.services.Monitoring.GetState(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, "printer_get_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Set printer switch
// @Description  The request is acknowledged and reverted to the engine's value shortly after.
// @Tags         printers
// @Accept       json
// @Produce      json
// @Param        id    path   string         true  "Printer id"
// @Param        body  body   SwitchRequest  true  "Switch payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/printers/{id}/switch [post]
// @Security     BearerAuth
func (h *Handler) setSwitch(c *gin.Context) {
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.Control.SetSwitch(c.Request.Context(), id, *req.On); err != nil {
		h.writeServiceError(c, "printer_switch_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusAccepted, "on": *req.On})
}

// @Summary      Reset activation counter
// @Tags         printers
// @Produce      json
// @Param        id   path      string  true  "Printer id"
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/printers/{id}/reset [post]
// @Security     BearerAuth
func (h *Handler) resetCounters(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.services.Control.Reset(ctx, id); err != nil {
		h.writeServiceError(c, "printer_reset_failed", err, "device_id", id)
		return
	}
	resp := gin.H{"status": statusReset}
	if st, err := h.services.Monitoring.GetState(ctx, id); err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}
