package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

func voiceConfig(url string) config.VoiceChannelConfig {
	return config.VoiceChannelConfig{
		Enabled:        true,
		URL:            url,
		TimeoutSec:     5,
		Token:          "voice-token",
		ScriptTemplate: "[{{ .Level }}] {{ .Component }}: {{ .Title }}. {{ .Message }}",
	}
}

func TestVoiceSinkSeverityGate(t *testing.T) {
	t.Parallel()

	sink := NewVoiceSink(voiceConfig("http://voice.local/say"))
	cases := []struct {
		level    domain.Level
		expected bool
	}{
		{domain.LevelCritical, true},
		{domain.LevelError, true},
		{domain.LevelWarning, false},
		{domain.LevelInfo, false},
		{domain.LevelSuccess, false},
	}
	for _, testCase := range cases {
		if got := sink.Accepts(domain.Alert{Level: testCase.level}); got != testCase.expected {
			t.Fatalf("level %s: expected accepts=%v, got %v", testCase.level, testCase.expected, got)
		}
	}
}

func TestVoiceSinkDeliver(t *testing.T) {
	t.Parallel()

	var received struct {
		Text      string `json:"text"`
		Priority  string `json:"priority"`
		Interrupt bool   `json:"interrupt"`
	}
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		authHeader = request.Header.Get("Authorization")
		body, _ := io.ReadAll(request.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewVoiceSink(voiceConfig(server.URL))
	alert := domain.Alert{
		Level:     domain.LevelCritical,
		Component: "db",
		Title:     "primary down",
		Message:   "replica promoted",
	}
	if err := sink.Deliver(context.Background(), alert); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if received.Text != "[CRITICAL] db: primary down. replica promoted" {
		t.Fatalf("unexpected rendered script: %q", received.Text)
	}
	if received.Priority != "critical" || !received.Interrupt {
		t.Fatalf("expected critical interrupt request, got %+v", received)
	}
	if authHeader != "Bearer voice-token" {
		t.Fatalf("expected bearer auth header, got %q", authHeader)
	}
}

func TestVoiceSinkNonCriticalDoesNotInterrupt(t *testing.T) {
	t.Parallel()

	var received voiceRequest
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		_ = json.Unmarshal(body, &received)
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewVoiceSink(voiceConfig(server.URL))
	alert := domain.Alert{Level: domain.LevelError, Component: "api", Title: "5xx spike"}
	if err := sink.Deliver(context.Background(), alert); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if received.Priority != "error" || received.Interrupt {
		t.Fatalf("expected non-interrupting error priority, got %+v", received)
	}
}

func TestVoiceSinkReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		http.Error(writer, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := NewVoiceSink(voiceConfig(server.URL))
	err := sink.Deliver(context.Background(), domain.Alert{Level: domain.LevelCritical, Component: "db", Title: "down"})
	if err == nil {
		t.Fatalf("expected error on 503 response")
	}
}
