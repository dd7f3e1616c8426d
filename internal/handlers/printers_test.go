package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"printer_monitor/internal/models"
	"printer_monitor/internal/service"
)

func twoPrinters() *mockMonitoring {
	return &mockMonitoring{states: []models.DeviceState{
		{DeviceID: "a", Name: "Office", Phase: "idle", Reachable: true, Active: true,
			Consumables: []models.ConsumableTracker{{SubID: "marker-0", Name: "Black", Level: 42}},
			UpdatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
		{DeviceID: "b", Name: "Lab", Phase: "failed"},
	}}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPrinters_RequireToken(t *testing.T) {
	r := newTestRouter(&service.Service{Monitoring: twoPrinters(), Authorization: okAuth()})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/printers", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", w.Code)
	}
}

func TestPrinters_ListAndGet(t *testing.T) {
	r := newTestRouter(&service.Service{Monitoring: twoPrinters(), Authorization: okAuth()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/printers", nil)
	req.Header = authHeader("tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", w.Code, w.Body.String())
	}
	var list struct {
		Count    int                  `json:"count"`
		Printers []models.DeviceState `json:"printers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if list.Count != 2 || list.Printers[0].Name != "Office" || list.Printers[1].Phase != "failed" {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/printers/a", nil)
	req.Header = authHeader("tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	var st models.DeviceState
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Active || len(st.Consumables) != 1 || st.Consumables[0].Level != 42 {
		t.Fatalf("unexpected state: %+v", st)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/printers/zzz", nil)
	req.Header = authHeader("tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown printer status=%d, want 404", w.Code)
	}
}

func TestPrinters_ListError(t *testing.T) {
	mon := &mockMonitoring{listErr: errors.New("boom")}
	r := newTestRouter(&service.Service{Monitoring: mon, Authorization: okAuth()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/printers", nil)
	req.Header = authHeader("tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", w.Code)
	}
}

func TestPrinters_Switch(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantCall bool
	}{
		{"accepted on", `{"on":true}`, nil, http.StatusAccepted, true},
		{"accepted off", `{"on":false}`, nil, http.StatusAccepted, true},
		{"missing field", `{}`, nil, http.StatusBadRequest, false},
		{"bad json", `{"on":`, nil, http.StatusBadRequest, false},
		{"unknown device", `{"on":true}`, service.ErrDeviceNotFound, http.StatusNotFound, true},
		{"control disabled", `{"on":true}`, service.ErrControlNotExposed, http.StatusConflict, true},
		{"unexpected", `{"on":true}`, errors.New("boom"), http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctl := &mockControl{switchErr: tc.err}
			r := newTestRouter(&service.Service{Control: ctl, Authorization: okAuth()})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/printers/a/switch", bytes.NewBufferString(tc.body))
			req.Header = authHeader("tok")
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if got := len(ctl.switchCalls) == 1; got != tc.wantCall {
				t.Fatalf("SetSwitch called=%v, want %v", got, tc.wantCall)
			}
			if tc.wantCall && ctl.switchCalls[0].id != "a" {
				t.Fatalf("SetSwitch id=%q", ctl.switchCalls[0].id)
			}
		})
	}
}

func TestPrinters_SwitchForwardsValue(t *testing.T) {
	ctl := &mockControl{}
	r := newTestRouter(&service.Service{Control: ctl, Authorization: okAuth()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/printers/a/switch", bytes.NewBufferString(`{"on":false}`))
	req.Header = authHeader("tok")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if len(ctl.switchCalls) != 1 || ctl.switchCalls[0].on {
		t.Fatalf("calls=%+v, want one call with on=false", ctl.switchCalls)
	}
}

func TestPrinters_Reset(t *testing.T) {
	ctl := &mockControl{}
	r := newTestRouter(&service.Service{Control: ctl, Monitoring: twoPrinters(), Authorization: okAuth()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/printers/a/reset", nil)
	req.Header = authHeader("tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(ctl.resetCalls) != 1 || ctl.resetCalls[0] != "a" {
		t.Fatalf("reset calls=%v", ctl.resetCalls)
	}
	var out struct {
		Status string             `json:"status"`
		State  models.DeviceState `json:"state"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Status != "reset" || out.State.DeviceID != "a" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	ctl.resetErr = service.ErrDeviceNotFound
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/printers/zzz/reset", nil)
	req.Header = authHeader("tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	r := NewHandler(&service.Service{}, nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("printer_monitor_up 1\n"))
	}), nil).InitRoutes()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("printer_monitor_up")) {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	newTestRouter(&service.Service{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler: status=%d, want 404", w.Code)
	}
}
