package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cheesecave/internal/models"
	"cheesecave/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"

	// Retention keeps about a month; a longer look-back is always empty.
	maxSince = 90 * 24 * time.Hour
)

var errRangeOrder = errors.New("'from' must be <= 'to'")

// eventQuery is the parsed form of GET /api/v1/events.
type eventQuery struct {
	from, to time.Time
	typ      string
}

// getEvents lists the cave history. Bounds come either from from/to
// (RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' covers
// the whole day) or from since=<duration> counted back from now.
func (h *Handler) getEvents(c *gin.Context) {
	q, err := parseEventQuery(c, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), service.LogFilter{From: q.from, To: q.to, Type: q.typ})
	if err != nil {
		if h.log != nil {
			h.log.Errorw("events_list_failed", "err", err, "from", q.from, "to", q.to, "type", q.typ)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseEventQuery(c *gin.Context, now time.Time) (eventQuery, error) {
	var q eventQuery

	if typ := strings.ToUpper(strings.TrimSpace(c.Query("type"))); typ != "" {
		if !models.IsEventType(typ) {
			return q, fmt.Errorf("unknown event type %q; use one of %s", typ, strings.Join(models.EventTypes, ", "))
		}
		q.typ = typ
	}

	if s := c.Query("since"); s != "" {
		if c.Query("from") != "" {
			return q, errors.New("use either 'since' or 'from', not both")
		}
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 || d > maxSince {
			return q, fmt.Errorf("invalid 'since' %q; use a positive duration up to %s", s, maxSince)
		}
		q.from = now.Add(-d)
	}

	if s := c.Query("from"); s != "" {
		t, err := parseQueryTime(s)
		if err != nil {
			return q, fmt.Errorf("invalid 'from': %w", err)
		}
		q.from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseQueryTime(s)
		if err != nil {
			return q, fmt.Errorf("invalid 'to': %w", err)
		}
		if !strings.ContainsAny(s, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		q.to = t
	}

	if !q.from.IsZero() && !q.to.IsZero() && q.from.After(q.to) {
		return q, errRangeOrder
	}
	return q, nil
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'", s)
}
