package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

// WebhookSink posts the full alert payload to a configured endpoint.
// Params: endpoint config and HTTP client.
// Returns: generic outbound integration channel with bearer auth.
type WebhookSink struct {
	cfg    config.WebhookChannelConfig
	client *http.Client
}

// NewWebhookSink creates generic webhook sink.
// Params: webhook channel settings from config.
// Returns: initialized sink.
func NewWebhookSink(cfg config.WebhookChannelConfig) *WebhookSink {
	return &WebhookSink{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Name returns sink channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSink) Name() string {
	return "webhook"
}

// Accepts reports whether sink wants this alert.
// Params: alert snapshot.
// Returns: true; the webhook channel receives every alert.
func (s *WebhookSink) Accepts(domain.Alert) bool {
	return true
}

// Deliver posts one alert payload to the webhook endpoint.
// Params: context and alert snapshot.
// Returns: encode, transport, or HTTP status error.
func (s *WebhookSink) Deliver(ctx context.Context, alert domain.Alert) error {
	body, err := json.Marshal(encodePayload(alert))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(s.cfg.BearerToken); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("webhook", response)
	}
	return nil
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sink prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}
