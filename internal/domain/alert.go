package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Level is alert severity class.
// Params: ordered severity constants from critical to success.
// Returns: severity used for distribution policy and sorting.
type Level string

const (
	// LevelCritical indicates system-wide failure requiring immediate action.
	LevelCritical Level = "CRITICAL"
	// LevelError indicates component failure.
	LevelError Level = "ERROR"
	// LevelWarning indicates degraded but operational state.
	LevelWarning Level = "WARNING"
	// LevelInfo indicates informational event.
	LevelInfo Level = "INFO"
	// LevelSuccess indicates recovery or closure signal.
	LevelSuccess Level = "SUCCESS"
)

// Status is alert lifecycle state.
// Params: active/resolved/expired constants.
// Returns: terminal-state tracking for lifecycle API.
type Status string

const (
	// StatusActive indicates alert is in the active set.
	StatusActive Status = "ACTIVE"
	// StatusResolved indicates alert was explicitly resolved.
	StatusResolved Status = "RESOLVED"
	// StatusExpired indicates alert TTL elapsed without acknowledgment.
	StatusExpired Status = "EXPIRED"
)

var levelOrder = map[Level]int{
	LevelCritical: 0,
	LevelError:    1,
	LevelWarning:  2,
	LevelInfo:     3,
	LevelSuccess:  4,
}

// LevelPriority returns sort weight for severity ordering.
// Params: severity level.
// Returns: smaller value for more severe levels; unknown levels sort last.
func LevelPriority(level Level) int {
	if priority, ok := levelOrder[level]; ok {
		return priority
	}
	return len(levelOrder)
}

// ParseLevel normalizes raw severity string into Level.
// Params: raw case-insensitive level name.
// Returns: parsed level and false when value is not a known severity.
func ParseLevel(raw string) (Level, bool) {
	level := Level(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := levelOrder[level]
	return level, ok
}

// LevelPolicy describes distribution behavior for one severity class.
// Params: escalation and voice-notification flags.
// Returns: per-level dispatch policy.
type LevelPolicy struct {
	AutoEscalate bool
	Notify       bool
}

var levelPolicies = map[Level]LevelPolicy{
	LevelCritical: {AutoEscalate: true, Notify: true},
	LevelError:    {Notify: true},
	LevelWarning:  {Notify: true},
	LevelInfo:     {},
	LevelSuccess:  {},
}

// PolicyFor returns distribution policy for severity level.
// Params: severity level.
// Returns: policy flags; unknown levels get the zero policy.
func PolicyFor(level Level) LevelPolicy {
	return levelPolicies[level]
}

// Alert is one notifiable event instance tracked through its lifecycle.
// Params: immutable identity/payload fields and mutable lifecycle markers.
// Returns: central entity stored in the active set and history.
type Alert struct {
	ID             string         `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	Level          Level          `json:"level"`
	Component      string         `json:"component"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	Metrics        map[string]any `json:"metrics,omitempty"`
	Actions        []string       `json:"actions,omitempty"`
	Status         Status         `json:"status"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	Resolution     string         `json:"resolution,omitempty"`
	TTLMillis      int64          `json:"ttl_ms"`
	Tags           []string       `json:"tags,omitempty"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
	EscalatedFrom  string         `json:"escalated_from,omitempty"`
}

// AlertInput is create request payload from producers.
// Params: caller-supplied alert fields before validation/defaults.
// Returns: input consumed by lifecycle create operation.
type AlertInput struct {
	Level         Level          `json:"level"`
	Component     string         `json:"component"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	Actions       []string       `json:"actions,omitempty"`
	TTLMillis     int64          `json:"ttl_ms,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	EscalatedFrom string         `json:"escalated_from,omitempty"`
}

// Filter narrows active-alert queries.
// Params: optional level/component match and unacknowledged-only flag.
// Returns: query predicate for the active set.
type Filter struct {
	Level          Level
	Component      string
	Unacknowledged bool
}

// Statistics aggregates current engine counters.
// Params: folded counters over active set and history total.
// Returns: read-only snapshot for monitoring callers.
type Statistics struct {
	Active         int            `json:"active"`
	Total          int            `json:"total"`
	ByLevel        map[Level]int  `json:"by_level"`
	ByComponent    map[string]int `json:"by_component"`
	Unacknowledged int            `json:"unacknowledged"`
	CriticalActive int            `json:"critical_active"`
}

// DispatchResult records one channel delivery outcome.
// Params: channel name and terminal delivery status.
// Returns: ephemeral record for logging and tests, never persisted.
type DispatchResult struct {
	Channel string
	OK      bool
	Err     error
}

// Summary renders human-readable one-alert digest.
// Params: none.
// Returns: "[LEVEL] component: title\nmessage" string.
func (a Alert) Summary() string {
	var builder strings.Builder
	builder.Grow(len(a.Level) + len(a.Component) + len(a.Title) + len(a.Message) + 6)
	builder.WriteByte('[')
	builder.WriteString(string(a.Level))
	builder.WriteString("] ")
	builder.WriteString(a.Component)
	builder.WriteString(": ")
	builder.WriteString(a.Title)
	builder.WriteByte('\n')
	builder.WriteString(a.Message)
	return builder.String()
}

// ThrottleKey builds deduplication key for create throttling.
// Params: none.
// Returns: "component:title" key shared by near-duplicate alerts.
func (in AlertInput) ThrottleKey() string {
	return in.Component + ":" + in.Title
}

// BuildAlertID builds unique namespaced alert identifier.
// Params: component, title, creation time, and process-unique sequence.
// Returns: "alert/<component>/<sha1 hex>" identifier.
func BuildAlertID(component, title string, createdAt time.Time, seq uint64) string {
	canonical := make([]byte, 0, len(component)+len(title)+32)
	canonical = append(canonical, component...)
	canonical = append(canonical, '\n')
	canonical = append(canonical, title...)
	canonical = append(canonical, '\n')
	canonical = strconv.AppendInt(canonical, createdAt.UnixNano(), 10)
	canonical = append(canonical, '\n')
	canonical = strconv.AppendUint(canonical, seq, 10)

	digest := sha1.Sum(canonical)
	var hashValue [sha1.Size * 2]byte
	hex.Encode(hashValue[:], digest[:])

	componentToken := sanitize(component)
	var builder strings.Builder
	builder.Grow(len("alert/") + len(componentToken) + 1 + len(hashValue))
	builder.WriteString("alert/")
	builder.WriteString(componentToken)
	builder.WriteByte('/')
	builder.Write(hashValue[:])
	return builder.String()
}

// sanitize converts id path fragments into stable bucket-safe tokens.
// Params: raw value with possible separators.
// Returns: sanitized string with unsupported chars replaced by underscore.
func sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
