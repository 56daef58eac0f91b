package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cheesecave/internal/models"
	"cheesecave/internal/service"
)

func TestEventsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.Event{
		{EventID: "e1", OccurredAt: now, Type: models.EventHumidifierOn, Description: "humidifier switched on"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: models.EventModeChange, Description: "menu GENERAL_INFO -> HUMIDITY_SET"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// Missing/invalid 'from' → 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?from=notatime", nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type (lowercase type should be normalized to upper in service call)
	w = httptest.NewRecorder()
	q := "/api/v1/events?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=mode_change"
	req = httptest.NewRequest(http.MethodGet, q, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int            `json:"count"`
		Events []models.Event `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "MODE_CHANGE" {
		t.Fatalf("expected lastType MODE_CHANGE, got %q", logs.lastType)
	}
}

func TestEventsHandler_DateOnlyToCoversDay(t *testing.T) {
	logs := &mockEventLog{}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?from=2025-06-01&to=2025-06-01", nil)
	req.Header = authHeader("valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	wantTo := time.Date(2025, 6, 1, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastTo.Equal(wantTo) {
		t.Fatalf("to=%v, want %v", logs.lastTo, wantTo)
	}

	// from after to → 400 before reaching the service
	logs.lastType = "untouched"
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/events?from=2025-06-02&to=2025-06-01T00:00:00Z&type=error", nil)
	req.Header = authHeader("valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if logs.lastType != "untouched" {
		t.Fatalf("service should not be called")
	}
}

func TestEventsHandler_RequiresToken(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, EventLog: &mockEventLog{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestEventsHandler_RejectsUnknownType(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?type=furnace_on", nil)
	req.Header = authHeader("valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), models.EventHumidifierOn) {
		t.Fatalf("error should list the known types: %s", w.Body.String())
	}
}

func TestEventsHandler_Since(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs})

	before := time.Now().UTC()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?since=24h&type=telemetry", nil)
	req.Header = authHeader("valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := before.Sub(logs.lastFrom); got < 24*time.Hour-time.Second || got > 24*time.Hour+time.Second {
		t.Fatalf("from=%v is not a day back from %v", logs.lastFrom, before)
	}

	for _, q := range []string{"since=0s", "since=-1h", "since=nonsense", "since=2400h", "since=1h&from=2025-06-01"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/v1/events?"+q, nil)
		req.Header = authHeader("valid")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
}
