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

// PersistentSink mirrors alerts into a JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: fire-and-forget persistent channel; in-memory state stays
// authoritative and is never rolled back on sink failure.
type PersistentSink struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewPersistentSink connects NATS and opens the alert mirror bucket.
// Params: persistent channel settings from config.
// Returns: initialized sink or setup error.
func NewPersistentSink(cfg config.PersistentChannelConfig) (*PersistentSink, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(cfg.Bucket)
	if err != nil {
		if !cfg.AllowCreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open alert bucket %q: %w", cfg.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.Bucket})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create alert bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &PersistentSink{nc: nc, kv: kv}, nil
}

// Name returns sink channel name.
// Params: none.
// Returns: static channel key.
func (s *PersistentSink) Name() string {
	return "persistent"
}

// Accepts reports whether sink wants this alert.
// Params: alert snapshot.
// Returns: true; the persistent channel receives every alert.
func (s *PersistentSink) Accepts(domain.Alert) bool {
	return true
}

// Deliver inserts one alert record into the mirror bucket.
// Params: context and alert snapshot.
// Returns: encode or KV put error.
func (s *PersistentSink) Deliver(_ context.Context, alert domain.Alert) error {
	body, err := json.Marshal(encodePayload(alert))
	if err != nil {
		return fmt.Errorf("encode alert record: %w", err)
	}
	if _, err := s.kv.Put(alert.ID, body); err != nil {
		return fmt.Errorf("put alert record: %w", err)
	}
	return nil
}

// Update merges partial lifecycle fields into one mirrored record.
// Params: alert id and partial field set keyed by JSON field name.
// Returns: read/merge/put error; missing records are created from the fields.
func (s *PersistentSink) Update(_ context.Context, id string, fields map[string]any) error {
	record := make(map[string]any, len(fields))
	entry, err := s.kv.Get(id)
	if err != nil && err != nats.ErrKeyNotFound {
		return fmt.Errorf("get alert record: %w", err)
	}
	if err == nil {
		if decodeErr := json.Unmarshal(entry.Value(), &record); decodeErr != nil {
			return fmt.Errorf("decode alert record: %w", decodeErr)
		}
	}
	for key, value := range fields {
		record[key] = value
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode alert record: %w", err)
	}
	if _, err := s.kv.Put(id, body); err != nil {
		return fmt.Errorf("put alert record: %w", err)
	}
	return nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *PersistentSink) Close() error {
	s.nc.Close()
	return nil
}
