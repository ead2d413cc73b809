package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"alertflow/internal/config"
	"alertflow/internal/domain"

	"github.com/nats-io/nats.go"
)

// RealtimeSink broadcasts alerts on a NATS subject.
// Params: NATS connection and publish subject.
// Returns: fire-and-forget realtime channel for websocket-style consumers.
type RealtimeSink struct {
	nc      *nats.Conn
	subject string
}

// NewRealtimeSink connects NATS for realtime broadcasting.
// Params: realtime channel settings from config.
// Returns: initialized sink or connect error.
func NewRealtimeSink(cfg config.RealtimeChannelConfig) (*RealtimeSink, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &RealtimeSink{nc: nc, subject: cfg.Subject}, nil
}

// Name returns sink channel name.
// Params: none.
// Returns: static channel key.
func (s *RealtimeSink) Name() string {
	return "realtime"
}

// Accepts reports whether sink wants this alert.
// Params: alert snapshot.
// Returns: true; the realtime channel receives every alert.
func (s *RealtimeSink) Accepts(domain.Alert) bool {
	return true
}

// Deliver publishes one alert payload on the broadcast subject.
// Params: context and alert snapshot.
// Returns: encode or publish error.
func (s *RealtimeSink) Deliver(_ context.Context, alert domain.Alert) error {
	body, err := json.Marshal(encodePayload(alert))
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}
	if err := s.nc.Publish(s.subject, body); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *RealtimeSink) Close() error {
	s.nc.Close()
	return nil
}
