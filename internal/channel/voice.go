package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/templatefmt"
)

// VoiceSink posts spoken-notification requests to an HTTP endpoint.
// Params: endpoint config, HTTP client, and compiled script template.
// Returns: severity-gated voice/push channel.
type VoiceSink struct {
	cfg     config.VoiceChannelConfig
	client  *http.Client
	script  *template.Template
	initErr error
}

// voiceRequest is the voice endpoint wire payload.
// Params: rendered script text, priority label, and interrupt flag.
// Returns: JSON body for the voice API.
type voiceRequest struct {
	Text      string `json:"text"`
	Priority  string `json:"priority"`
	Interrupt bool   `json:"interrupt"`
}

// NewVoiceSink creates voice sink with compiled script template.
// Params: voice channel settings from config.
// Returns: initialized sink; template errors surface on first delivery.
func NewVoiceSink(cfg config.VoiceChannelConfig) *VoiceSink {
	sink := &VoiceSink{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
	script, err := templatefmt.ParseScriptTemplate("channels.voice.script_template", cfg.ScriptTemplate)
	if err != nil {
		sink.initErr = fmt.Errorf("compile voice script: %w", err)
		return sink
	}
	sink.script = script
	return sink
}

// Name returns sink channel name.
// Params: none.
// Returns: static channel key.
func (s *VoiceSink) Name() string {
	return "voice"
}

// Accepts applies the severity notify policy.
// Params: alert snapshot.
// Returns: true only for CRITICAL/ERROR alerts whose policy sets notify.
func (s *VoiceSink) Accepts(alert domain.Alert) bool {
	if !domain.PolicyFor(alert.Level).Notify {
		return false
	}
	return alert.Level == domain.LevelCritical || alert.Level == domain.LevelError
}

// Deliver renders the script and posts one voice request.
// Params: context and alert snapshot.
// Returns: render, transport, or HTTP status error.
func (s *VoiceSink) Deliver(ctx context.Context, alert domain.Alert) error {
	if s.initErr != nil {
		return s.initErr
	}

	var script strings.Builder
	if err := s.script.Execute(&script, alert); err != nil {
		return fmt.Errorf("render voice script: %w", err)
	}

	body, err := json.Marshal(voiceRequest{
		Text:      script.String(),
		Priority:  strings.ToLower(string(alert.Level)),
		Interrupt: alert.Level == domain.LevelCritical,
	})
	if err != nil {
		return fmt.Errorf("encode voice payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build voice request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(s.cfg.Token); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("voice send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("voice", response)
	}
	return nil
}
