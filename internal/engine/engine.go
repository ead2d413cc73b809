package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"alertflow/internal/channel"
	"alertflow/internal/clock"
	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/store"
	"alertflow/internal/throttle"
)

// EscalationTitlePrefix marks titles of alerts created by auto-escalation.
const EscalationTitlePrefix = "[ESCALATED] "

// Options configures one lifecycle engine instance.
// Params: timing policy, collaborators, and optional logger/clock.
// Returns: construction parameters for New.
type Options struct {
	ThrottleWindow    time.Duration
	EscalationDelay   time.Duration
	DefaultTTL        time.Duration
	LowScoreThreshold float64
	HistoryLimit      int
	Logger            *slog.Logger
	Clock             clock.Clock
	Dispatcher        *channel.Dispatcher
	Updater           channel.Updater
}

// OptionsFromConfig converts engine config section into runtime options.
// Params: defaulted engine config.
// Returns: options without collaborators wired.
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		ThrottleWindow:    time.Duration(cfg.ThrottleWindowSec) * time.Second,
		EscalationDelay:   time.Duration(cfg.EscalationDelaySec) * time.Second,
		DefaultTTL:        time.Duration(cfg.DefaultTTLMillis) * time.Millisecond,
		LowScoreThreshold: cfg.LowScoreThreshold,
	}
}

// Engine is the alert lifecycle and distribution coordinator.
// Params: throttle guard, authoritative store, dispatcher, and timing policy.
// Returns: public lifecycle API surface.
type Engine struct {
	opts       Options
	logger     *slog.Logger
	clk        clock.Clock
	guard      *throttle.Guard
	store      *store.Store
	dispatcher *channel.Dispatcher
	updater    channel.Updater

	seq    atomic.Uint64
	closed atomic.Bool

	subMu  sync.Mutex
	subSeq uint64
	subs   map[uint64]func(domain.Alert)
}

// New creates lifecycle engine with injected state.
// Params: options with collaborators; nil logger/clock get safe defaults.
// Returns: independent engine instance (no module-level registries).
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = channel.NewDispatcher(opts.Logger)
	}
	return &Engine{
		opts:       opts,
		logger:     opts.Logger,
		clk:        opts.Clock,
		guard:      throttle.NewGuard(opts.ThrottleWindow, opts.Clock.Now),
		store:      store.New(opts.HistoryLimit),
		dispatcher: opts.Dispatcher,
		updater:    opts.Updater,
		subs:       make(map[uint64]func(domain.Alert)),
	}
}

// CreateAlert validates, stores, and distributes one alert.
// Params: context and producer input.
// Returns: created alert, or (nil, nil) when the create was throttled;
// throttling is normal-operation damping, not a failure.
func (e *Engine) CreateAlert(ctx context.Context, input domain.AlertInput) (*domain.Alert, error) {
	if e.closed.Load() {
		return nil, errors.New("engine is closed")
	}
	input, err := normalizeInput(input, e.opts.DefaultTTL)
	if err != nil {
		return nil, err
	}

	if !e.guard.Allow(input.ThrottleKey()) {
		e.logger.Debug("alert create throttled", "component", input.Component, "title", input.Title)
		return nil, nil
	}

	now := e.clk.Now()
	alert := domain.Alert{
		ID:            domain.BuildAlertID(input.Component, input.Title, now, e.seq.Add(1)),
		CreatedAt:     now,
		Level:         input.Level,
		Component:     input.Component,
		Title:         input.Title,
		Message:       input.Message,
		Details:       input.Details,
		Metrics:       input.Metrics,
		Actions:       input.Actions,
		Status:        domain.StatusActive,
		TTLMillis:     input.TTLMillis,
		Tags:          input.Tags,
		CorrelationID: input.CorrelationID,
		EscalatedFrom: input.EscalatedFrom,
	}
	e.store.Insert(alert)

	results := e.dispatcher.Dispatch(ctx, alert)
	e.logger.Info("alert created",
		"alert_id", alert.ID,
		"level", string(alert.Level),
		"component", alert.Component,
		"channels", len(results),
	)

	if domain.PolicyFor(alert.Level).AutoEscalate && e.opts.EscalationDelay > 0 {
		alertID := alert.ID
		time.AfterFunc(e.opts.EscalationDelay, func() {
			e.fireEscalation(alertID)
		})
	}
	if alert.TTLMillis > 0 {
		alertID := alert.ID
		time.AfterFunc(time.Duration(alert.TTLMillis)*time.Millisecond, func() {
			e.fireExpiry(alertID)
		})
	}

	e.notifySubscribers(alert)
	return &alert, nil
}

// Acknowledge marks one active alert acknowledged.
// Params: alert id and acknowledging actor.
// Returns: false when the alert is not active. Repeat calls return true
// but keep the first acknowledgment metadata. Pending timers are not
// cancelled; their fire-time guards consult the acknowledged flag.
func (e *Engine) Acknowledge(ctx context.Context, id, by string) bool {
	snapshot, ok := e.store.Acknowledge(id, by, e.clk.Now())
	if !ok {
		return false
	}
	e.logger.Info("alert acknowledged", "alert_id", id, "by", by)
	e.mirrorUpdate(ctx, id, map[string]any{
		"acknowledged":    true,
		"acknowledged_at": snapshot.AcknowledgedAt,
		"acknowledged_by": snapshot.AcknowledgedBy,
	})
	return true
}

// Resolve terminates one active alert and announces closure.
// Params: context, alert id, resolving actor, and optional resolution note.
// Returns: false when the alert is not active. Resolving a CRITICAL or
// ERROR alert synthesizes a SUCCESS closure alert on the same component
// carrying correlation_id = the resolved alert's id.
func (e *Engine) Resolve(ctx context.Context, id, by, resolution string) bool {
	snapshot, ok := e.store.Resolve(id, by, resolution, e.clk.Now())
	if !ok {
		return false
	}
	e.logger.Info("alert resolved", "alert_id", id, "by", by)
	e.mirrorUpdate(ctx, id, map[string]any{
		"status":      string(domain.StatusResolved),
		"resolved_at": snapshot.ResolvedAt,
		"resolved_by": snapshot.ResolvedBy,
		"resolution":  snapshot.Resolution,
	})

	if snapshot.Level == domain.LevelCritical || snapshot.Level == domain.LevelError {
		closure := domain.AlertInput{
			Level:         domain.LevelSuccess,
			Component:     snapshot.Component,
			Title:         "Resolved: " + snapshot.Title,
			Message:       closureMessage(snapshot, by),
			CorrelationID: snapshot.ID,
			TTLMillis:     -1,
		}
		if _, err := e.CreateAlert(ctx, closure); err != nil {
			e.logger.Error("closure alert failed", "alert_id", id, "error", err.Error())
		}
	}
	return true
}

// ActiveAlerts lists active alerts matching filter.
// Params: query filter.
// Returns: copies sorted most-severe-first.
func (e *Engine) ActiveAlerts(filter domain.Filter) []domain.Alert {
	return e.store.Active(filter)
}

// GetAlert returns one alert snapshot by id.
// Params: alert id.
// Returns: detached copy and existence flag.
func (e *Engine) GetAlert(id string) (domain.Alert, bool) {
	return e.store.Get(id)
}

// History lists retained alert history.
// Params: max entry count.
// Returns: copies ordered oldest-first.
func (e *Engine) History(limit int) []domain.Alert {
	return e.store.History(limit)
}

// Statistics folds counters over the active set.
// Params: none.
// Returns: aggregate snapshot.
func (e *Engine) Statistics() domain.Statistics {
	return e.store.Statistics()
}

// Subscribe registers one in-process observer of created alerts.
// Params: callback invoked for every created alert.
// Returns: unsubscribe function; safe to call more than once.
func (e *Engine) Subscribe(callback func(domain.Alert)) func() {
	e.subMu.Lock()
	e.subSeq++
	token := e.subSeq
	e.subs[token] = callback
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, token)
		e.subMu.Unlock()
	}
}

// Close stops the engine; pending timer fires become no-ops.
// Params: none.
// Returns: engine flagged closed.
func (e *Engine) Close() {
	e.closed.Store(true)
}

// fireEscalation is the escalation timer body for one alert.
// Params: original alert id captured at arm time.
// Returns: new escalated CRITICAL alert through the full create path,
// or silent no-op when acknowledged/terminated by fire time.
func (e *Engine) fireEscalation(id string) {
	if e.closed.Load() {
		return
	}
	if !e.store.IsActiveUnacknowledged(id) {
		return
	}
	original, ok := e.store.Get(id)
	if !ok {
		return
	}

	escalatedTTL := original.TTLMillis
	if escalatedTTL == 0 {
		escalatedTTL = -1
	}
	escalated := domain.AlertInput{
		Level:     domain.LevelCritical,
		Component: original.Component,
		Title:     EscalationTitlePrefix + original.Title,
		Message: fmt.Sprintf("Alert %q was not acknowledged within %s.",
			original.Title, e.opts.EscalationDelay),
		Details:       original.Details,
		Metrics:       original.Metrics,
		Actions:       original.Actions,
		Tags:          original.Tags,
		CorrelationID: original.ID,
		EscalatedFrom: original.ID,
		TTLMillis:     escalatedTTL,
	}
	created, err := e.CreateAlert(context.Background(), escalated)
	if err != nil {
		e.logger.Error("escalation create failed", "alert_id", id, "error", err.Error())
		return
	}
	if created != nil {
		e.logger.Warn("alert escalated", "alert_id", id, "escalated_id", created.ID)
	}
}

// fireExpiry is the TTL timer body for one alert.
// Params: alert id captured at arm time.
// Returns: alert expired and removed from the active set, or silent
// no-op when acknowledged/terminated by fire time.
func (e *Engine) fireExpiry(id string) {
	if e.closed.Load() {
		return
	}
	expired, ok := e.store.Expire(id)
	if !ok {
		return
	}
	e.logger.Info("alert expired", "alert_id", id, "ttl_ms", expired.TTLMillis)
	e.mirrorUpdate(context.Background(), id, map[string]any{
		"status": string(domain.StatusExpired),
	})
}

// mirrorUpdate pushes partial lifecycle fields to the persistent sink.
// Params: context, alert id, and partial field set.
// Returns: failures logged only; in-memory state is authoritative.
func (e *Engine) mirrorUpdate(ctx context.Context, id string, fields map[string]any) {
	if e.updater == nil {
		return
	}
	if err := e.updater.Update(ctx, id, fields); err != nil {
		e.logger.Error("persistent mirror update failed", "alert_id", id, "error", err.Error())
	}
}

// notifySubscribers invokes observers with per-subscriber isolation.
// Params: created alert snapshot.
// Returns: subscriber panics logged, never propagated.
func (e *Engine) notifySubscribers(alert domain.Alert) {
	e.subMu.Lock()
	callbacks := make([]func(domain.Alert), 0, len(e.subs))
	for _, callback := range e.subs {
		callbacks = append(callbacks, callback)
	}
	e.subMu.Unlock()

	for _, callback := range callbacks {
		e.notifyIsolated(callback, alert)
	}
}

// notifyIsolated calls one subscriber with panic containment.
// Params: callback and alert snapshot.
// Returns: panic converted into an error log entry.
func (e *Engine) notifyIsolated(callback func(domain.Alert), alert domain.Alert) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("subscriber panicked", "alert_id", alert.ID, "panic", fmt.Sprint(recovered))
		}
	}()
	callback(alert)
}

// normalizeInput validates and defaults producer input.
// Params: raw input and default TTL policy.
// Returns: normalized input or validation error.
func normalizeInput(input domain.AlertInput, defaultTTL time.Duration) (domain.AlertInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return domain.AlertInput{}, errors.New("alert title is required")
	}
	input.Component = strings.TrimSpace(input.Component)
	if input.Component == "" {
		input.Component = "system"
	}
	if input.Level == "" {
		input.Level = domain.LevelInfo
	}
	level, ok := domain.ParseLevel(string(input.Level))
	if !ok {
		return domain.AlertInput{}, fmt.Errorf("alert level %q is not supported", string(input.Level))
	}
	input.Level = level
	if input.TTLMillis == 0 {
		input.TTLMillis = defaultTTL.Milliseconds()
	}
	if input.TTLMillis < 0 {
		input.TTLMillis = 0
	}
	return input, nil
}

// closureMessage renders the SUCCESS closure alert body.
// Params: resolved alert snapshot and resolving actor.
// Returns: human-readable closure message.
func closureMessage(resolved domain.Alert, by string) string {
	if strings.TrimSpace(resolved.Resolution) != "" {
		return fmt.Sprintf("%s alert %q was resolved by %s: %s",
			string(resolved.Level), resolved.Title, by, resolved.Resolution)
	}
	return fmt.Sprintf("%s alert %q was resolved by %s.",
		string(resolved.Level), resolved.Title, by)
}
