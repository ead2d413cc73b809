package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alertflow/internal/domain"
	"alertflow/internal/engine"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Options{
		ThrottleWindow:    time.Minute,
		DefaultTTL:        time.Hour,
		LowScoreThreshold: 40,
	})
	t.Cleanup(eng.Close)
	return NewHTTPHandler(eng, 1<<20), eng
}

func postJSON(handler http.HandlerFunc, target string, payload string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, target, strings.NewReader(payload))
	recorder := httptest.NewRecorder()
	handler(recorder, request)
	return recorder
}

func TestHandleCreate(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)

	recorder := postJSON(handler.HandleCreate, "/api/v1/alerts", `{"level":"error","component":"db","title":"down"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", recorder.Code, recorder.Body.String())
	}
	var created domain.Alert
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created alert: %v", err)
	}
	if created.Level != domain.LevelError || created.Status != domain.StatusActive {
		t.Fatalf("unexpected created alert: %+v", created)
	}

	throttled := postJSON(handler.HandleCreate, "/api/v1/alerts", `{"level":"error","component":"db","title":"down"}`)
	if throttled.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for throttled duplicate, got %d", throttled.Code)
	}

	bad := postJSON(handler.HandleCreate, "/api/v1/alerts", `{"level":"error"`)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken json, got %d", bad.Code)
	}

	missingTitle := postJSON(handler.HandleCreate, "/api/v1/alerts", `{"level":"error","component":"db"}`)
	if missingTitle.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", missingTitle.Code)
	}
}

func TestHandleCreateRejectsNonPOST(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)
	request := httptest.NewRequest(http.MethodPut, "/api/v1/alerts", bytes.NewReader(nil))
	recorder := httptest.NewRecorder()
	handler.HandleCreate(recorder, request)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestHandleAcknowledgeAndResolve(t *testing.T) {
	t.Parallel()

	handler, eng := newTestHandler(t)
	alert, err := eng.CreateAlert(context.Background(), domain.AlertInput{
		Level:     domain.LevelCritical,
		Component: "db",
		Title:     "primary down",
	})
	if err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	ack := postJSON(handler.HandleAcknowledge, "/api/v1/alerts/ack",
		`{"id":"`+alert.ID+`","by":"alice"}`)
	if ack.Code != http.StatusOK {
		t.Fatalf("expected 200 acknowledge, got %d", ack.Code)
	}

	missing := postJSON(handler.HandleAcknowledge, "/api/v1/alerts/ack", `{"id":"alert/unknown","by":"alice"}`)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", missing.Code)
	}

	noID := postJSON(handler.HandleAcknowledge, "/api/v1/alerts/ack", `{"by":"alice"}`)
	if noID.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", noID.Code)
	}

	resolve := postJSON(handler.HandleResolve, "/api/v1/alerts/resolve",
		`{"id":"`+alert.ID+`","by":"alice","resolution":"failover complete"}`)
	if resolve.Code != http.StatusOK {
		t.Fatalf("expected 200 resolve, got %d", resolve.Code)
	}

	again := postJSON(handler.HandleResolve, "/api/v1/alerts/resolve",
		`{"id":"`+alert.ID+`","by":"bob"}`)
	if again.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for terminal alert, got %d", again.Code)
	}
}

func TestHandleListFilters(t *testing.T) {
	t.Parallel()

	handler, eng := newTestHandler(t)
	seed := []domain.AlertInput{
		{Level: domain.LevelCritical, Component: "db", Title: "primary down"},
		{Level: domain.LevelWarning, Component: "api", Title: "latency"},
		{Level: domain.LevelInfo, Component: "api", Title: "deploy finished"},
	}
	for _, input := range seed {
		if _, err := eng.CreateAlert(context.Background(), input); err != nil {
			t.Fatalf("seed alert: %v", err)
		}
	}

	recorder := httptest.NewRecorder()
	handler.HandleList(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	var all []domain.Alert
	if err := json.Unmarshal(recorder.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != 3 || all[0].Level != domain.LevelCritical {
		t.Fatalf("expected severity-sorted list, got %+v", all)
	}

	recorder = httptest.NewRecorder()
	handler.HandleList(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?component=api&level=warning", nil))
	var filtered []domain.Alert
	_ = json.Unmarshal(recorder.Body.Bytes(), &filtered)
	if len(filtered) != 1 || filtered[0].Title != "latency" {
		t.Fatalf("expected single filtered alert, got %+v", filtered)
	}

	recorder = httptest.NewRecorder()
	handler.HandleList(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?level=bogus", nil))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level filter, got %d", recorder.Code)
	}
}

func TestHandleStatistics(t *testing.T) {
	t.Parallel()

	handler, eng := newTestHandler(t)
	if _, err := eng.CreateAlert(context.Background(), domain.AlertInput{
		Level:     domain.LevelCritical,
		Component: "db",
		Title:     "primary down",
	}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	recorder := httptest.NewRecorder()
	handler.HandleStatistics(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/stats", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 stats, got %d", recorder.Code)
	}
	var stats domain.Statistics
	if err := json.Unmarshal(recorder.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Active != 1 || stats.CriticalActive != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHandleReport(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)
	payload := `{
		"overall_status": "degraded",
		"components": [
			{"component": "db", "status": "fail", "score": 20},
			{"component": "api", "status": "pass", "score": 95}
		]
	}`
	recorder := postJSON(handler.HandleReport, "/api/v1/reports", payload)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 report ingest, got %d body=%s", recorder.Code, recorder.Body.String())
	}
	var created []domain.Alert
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created alerts: %v", err)
	}
	if len(created) != 1 || created[0].Component != "db" || created[0].Level != domain.LevelCritical {
		t.Fatalf("unexpected synthesized alerts: %+v", created)
	}

	bad := postJSON(handler.HandleReport, "/api/v1/reports", `{"overall_score": 10}`)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid report, got %d", bad.Code)
	}
}

func TestBodySizeCap(t *testing.T) {
	t.Parallel()

	eng := engine.New(engine.Options{DefaultTTL: time.Hour})
	t.Cleanup(eng.Close)
	handler := NewHTTPHandler(eng, 64)

	oversized := `{"title":"` + strings.Repeat("x", 256) + `"}`
	recorder := postJSON(handler.HandleCreate, "/api/v1/alerts", oversized)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", recorder.Code)
	}
}
