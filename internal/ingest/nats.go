package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"alertflow/internal/config"
	"alertflow/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSIngest consumes alert inputs from a NATS subject.
// Params: connection, queue subscriptions, engine surface, and logger.
// Returns: producer-facing ingest path for the nats service mode.
type NATSIngest struct {
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	api           Lifecycle
	logger        *slog.Logger
}

// NewNATSIngest connects and subscribes to the ingest subject.
// Params: ingest settings, engine surface, and logger.
// Returns: running subscriber or connect/subscribe error.
func NewNATSIngest(cfg config.NATSIngestConfig, api Lifecycle, logger *slog.Logger) (*NATSIngest, error) {
	servers := strings.Join(cfg.URL, ",")
	conn, err := nats.Connect(servers, nats.Name("alertflow-ingest"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", servers, err)
	}

	ingest := &NATSIngest{
		conn:   conn,
		api:    api,
		logger: logger,
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for index := 0; index < workers; index++ {
		subscription, err := conn.QueueSubscribe(cfg.Subject, cfg.Queue, ingest.handleMessage)
		if err != nil {
			ingest.Close()
			return nil, fmt.Errorf("subscribe to %s: %w", cfg.Subject, err)
		}
		ingest.subscriptions = append(ingest.subscriptions, subscription)
	}

	logger.Info("NATS ingest started", "subject", cfg.Subject, "queue", cfg.Queue, "workers", workers)
	return ingest, nil
}

// handleMessage decodes one alert input and feeds it to the engine.
// Params: inbound NATS message.
// Returns: nothing; decode and create failures are logged and dropped.
func (n *NATSIngest) handleMessage(message *nats.Msg) {
	var input domain.AlertInput
	if err := json.Unmarshal(message.Data, &input); err != nil {
		n.logger.Warn("drop undecodable alert input", "subject", message.Subject, "error", err)
		return
	}

	alert, err := n.api.CreateAlert(context.Background(), input)
	if err != nil {
		n.logger.Warn("reject alert input", "subject", message.Subject, "error", err)
		return
	}
	if alert == nil {
		n.logger.Debug("throttled alert input", "component", input.Component, "title", input.Title)
		return
	}
	n.logger.Debug("ingested alert", "id", alert.ID, "level", alert.Level)
}

// Close drains subscriptions and closes the connection.
// Params: none.
// Returns: nothing; unsubscribe errors are ignored during shutdown.
func (n *NATSIngest) Close() {
	for _, subscription := range n.subscriptions {
		_ = subscription.Unsubscribe()
	}
	n.subscriptions = nil
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}
