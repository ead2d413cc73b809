package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"alertflow/internal/domain"
)

// Sink delivers one alert to one distribution channel.
// Params: context and alert snapshot.
// Returns: terminal delivery error; the dispatcher never retries.
type Sink interface {
	Name() string
	Accepts(alert domain.Alert) bool
	Deliver(ctx context.Context, alert domain.Alert) error
}

// Updater mirrors lifecycle field changes into the persistent sink.
// Params: alert id and partial field set.
// Returns: fire-and-forget update error, logged only.
type Updater interface {
	Update(ctx context.Context, id string, fields map[string]any) error
}

// alertPayload is the wire form of one alert for channel sinks.
// Params: embedded alert fields plus derived summary string.
// Returns: flat JSON object shared by persistent/realtime/webhook sinks.
type alertPayload struct {
	domain.Alert
	Summary string `json:"summary"`
}

// encodePayload builds the outbound wire payload for one alert.
// Params: alert snapshot.
// Returns: payload value with derived summary.
func encodePayload(alert domain.Alert) alertPayload {
	return alertPayload{Alert: alert, Summary: alert.Summary()}
}

// Dispatcher fans one alert out to all configured sinks concurrently.
// Params: sink list and logger for per-channel failure records.
// Returns: best-effort delivery join for the lifecycle engine.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher builds dispatcher over enabled sinks.
// Params: logger and sink list (nil sinks are skipped).
// Returns: configured dispatcher.
func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	kept := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &Dispatcher{sinks: kept, logger: logger}
}

// Channels returns configured sink names in registration order.
// Params: none.
// Returns: channel name list.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.sinks))
	for _, sink := range d.sinks {
		names = append(names, sink.Name())
	}
	return names
}

// Dispatch delivers one alert to every accepting sink and joins the results.
// Params: context and alert snapshot.
// Returns: one result per accepting channel; a sink failure never blocks
// or fails the other sinks and never propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.Alert) []domain.DispatchResult {
	accepting := make([]Sink, 0, len(d.sinks))
	for _, sink := range d.sinks {
		if sink.Accepts(alert) {
			accepting = append(accepting, sink)
		}
	}

	results := make([]domain.DispatchResult, len(accepting))
	var group sync.WaitGroup
	for index, sink := range accepting {
		group.Add(1)
		go func(slot int, target Sink) {
			defer group.Done()
			err := deliverIsolated(ctx, target, alert)
			results[slot] = domain.DispatchResult{
				Channel: target.Name(),
				OK:      err == nil,
				Err:     err,
			}
		}(index, sink)
	}
	group.Wait()

	if d.logger != nil {
		for _, result := range results {
			if result.OK {
				continue
			}
			d.logger.Error("channel delivery failed",
				"channel", result.Channel,
				"alert_id", alert.ID,
				"error", result.Err.Error(),
			)
		}
	}
	return results
}

// deliverIsolated invokes one sink with panic containment.
// Params: context, sink, and alert snapshot.
// Returns: delivery error; a sink panic is converted into an error.
func deliverIsolated(ctx context.Context, sink Sink, alert domain.Alert) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("channel %s panicked: %v", sink.Name(), recovered)
		}
	}()
	return sink.Deliver(ctx, alert)
}

// Close releases sink transports that hold connections.
// Params: none.
// Returns: first close error.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, sink := range d.sinks {
		closer, ok := sink.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
