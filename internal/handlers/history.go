package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"printer_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid   = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid     = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errStatusInvalid = "invalid 'status'; use 0 or 1"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      Activity history
// @Description  Transition and heartbeat entries. A date-only 'to' is treated as end of day (inclusive).
// @Tags         history
// @Produce      json
// @Param        id      path    string  false  "Printer id (omit on /api/v1/history)"
// @Param        from    query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2026-08-01)
// @Param        to      query   string  false  "End of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2026-08-31)
// @Param        status  query   int     false  "1 printing, 0 idle"  Enums(0,1)
// @Success      200     {object}  map[string]interface{}  "count, entries"
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /api/v1/printers/{id}/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	ctx := c.Request.Context()
	filter := service.HistoryFilter{DeviceID: c.Param("id"), Status: -1}

	if filter.DeviceID != "" {
		if _, err := h.services.Monitoring.GetState(ctx, filter.DeviceID); err != nil {
			h.writeServiceError(c, "history_device_lookup_failed", err, "device_id", filter.DeviceID)
			return
		}
	}

	var err error
	if qs := c.Query("from"); qs != "" {
		filter.From, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		filter.To, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			filter.To = filter.To.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if qs := strings.TrimSpace(c.Query("status")); qs != "" {
		v, convErr := strconv.Atoi(qs)
		if convErr != nil || (v != 0 && v != 1) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errStatusInvalid})
			return
		}
		filter.Status = v
	}

	entries, err := h.services.History.List(ctx, filter)
	if err != nil {
		h.writeServiceError(c, "history_list_failed", err, "device_id", filter.DeviceID, "from", filter.From, "to", filter.To)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2026-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
