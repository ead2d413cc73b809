package store

import (
	"sort"
	"sync"
	"time"

	"alertflow/internal/domain"
)

const defaultHistoryLimit = 1000

// Store is the in-process authoritative alert registry.
// Params: active map, bounded append-only history, and lifetime counter.
// Returns: engine's source of truth, independent of the persistent sink.
type Store struct {
	mu           sync.RWMutex
	active       map[string]*domain.Alert
	history      []*domain.Alert
	historyByID  map[string]*domain.Alert
	historyLimit int
	total        int
}

// New creates empty alert store.
// Params: history cap (defaults to 1000 when non-positive).
// Returns: initialized store.
func New(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Store{
		active:       make(map[string]*domain.Alert),
		historyByID:  make(map[string]*domain.Alert),
		historyLimit: historyLimit,
	}
}

// Insert registers one created alert in the active set and history.
// Params: alert snapshot with assigned id and ACTIVE status.
// Returns: store mutated in place.
func (s *Store) Insert(alert domain.Alert) {
	entry := cloneAlert(alert)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[entry.ID] = entry
	s.history = append(s.history, entry)
	s.historyByID[entry.ID] = entry
	s.total++
	if len(s.history) > s.historyLimit {
		evicted := s.history[0]
		s.history = s.history[1:]
		delete(s.historyByID, evicted.ID)
	}
}

// Get returns one alert snapshot by id from active set or history.
// Params: alert id.
// Returns: detached copy and existence flag.
func (s *Store) Get(id string) (domain.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.active[id]; ok {
		return *cloneAlert(*entry), true
	}
	if entry, ok := s.historyByID[id]; ok {
		return *cloneAlert(*entry), true
	}
	return domain.Alert{}, false
}

// Acknowledge marks one active alert acknowledged.
// Params: alert id, acknowledging actor, and acknowledgment time.
// Returns: updated snapshot and false when the alert is not active.
// Repeat calls keep the first acknowledgment metadata (first-call-wins).
func (s *Store) Acknowledge(id, by string, at time.Time) (domain.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.active[id]
	if !ok {
		return domain.Alert{}, false
	}
	if !entry.Acknowledged {
		entry.Acknowledged = true
		ackAt := at
		entry.AcknowledgedAt = &ackAt
		entry.AcknowledgedBy = by
	}
	return *cloneAlert(*entry), true
}

// Resolve terminates one active alert and removes it from the active set.
// Params: alert id, resolving actor, resolution note, and resolution time.
// Returns: resolved snapshot and false when the alert is not active.
func (s *Store) Resolve(id, by, resolution string, at time.Time) (domain.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.active[id]
	if !ok {
		return domain.Alert{}, false
	}
	entry.Status = domain.StatusResolved
	resolvedAt := at
	entry.ResolvedAt = &resolvedAt
	entry.ResolvedBy = by
	entry.Resolution = resolution
	delete(s.active, id)
	return *cloneAlert(*entry), true
}

// Expire terminates one active unacknowledged alert by TTL.
// Params: alert id.
// Returns: expired snapshot and false when the alert is not active
// or was acknowledged before the TTL fired.
func (s *Store) Expire(id string) (domain.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.active[id]
	if !ok || entry.Acknowledged {
		return domain.Alert{}, false
	}
	entry.Status = domain.StatusExpired
	delete(s.active, id)
	return *cloneAlert(*entry), true
}

// IsActiveUnacknowledged reports escalation/expiry fire-time guard state.
// Params: alert id.
// Returns: true when the alert is still active and not acknowledged.
func (s *Store) IsActiveUnacknowledged(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.active[id]
	return ok && !entry.Acknowledged
}

// Active lists current active alerts matching filter.
// Params: query filter (zero value matches everything).
// Returns: detached copies sorted most-severe-first, then newest-first.
func (s *Store) Active(filter domain.Filter) []domain.Alert {
	s.mu.RLock()
	alerts := make([]domain.Alert, 0, len(s.active))
	for _, entry := range s.active {
		if filter.Level != "" && entry.Level != filter.Level {
			continue
		}
		if filter.Component != "" && entry.Component != filter.Component {
			continue
		}
		if filter.Unacknowledged && entry.Acknowledged {
			continue
		}
		alerts = append(alerts, *cloneAlert(*entry))
	}
	s.mu.RUnlock()

	sort.Slice(alerts, func(i, j int) bool {
		left := domain.LevelPriority(alerts[i].Level)
		right := domain.LevelPriority(alerts[j].Level)
		if left != right {
			return left < right
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts
}

// History lists most recent history entries.
// Params: max entry count (non-positive returns everything retained).
// Returns: detached copies ordered oldest-first.
func (s *Store) History(limit int) []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.history) > limit {
		start = len(s.history) - limit
	}
	out := make([]domain.Alert, 0, len(s.history)-start)
	for _, entry := range s.history[start:] {
		out = append(out, *cloneAlert(*entry))
	}
	return out
}

// Statistics folds counters over the active set.
// Params: none.
// Returns: aggregate snapshot with lifetime total.
func (s *Store) Statistics() domain.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Statistics{
		Active:      len(s.active),
		Total:       s.total,
		ByLevel:     make(map[domain.Level]int),
		ByComponent: make(map[string]int),
	}
	for _, entry := range s.active {
		stats.ByLevel[entry.Level]++
		stats.ByComponent[entry.Component]++
		if !entry.Acknowledged {
			stats.Unacknowledged++
		}
		if entry.Level == domain.LevelCritical {
			stats.CriticalActive++
		}
	}
	return stats
}

// cloneAlert duplicates one alert with detached slices and timestamps.
// Params: source alert value.
// Returns: detached copy; Details/Metrics stay shared as opaque payload.
func cloneAlert(source domain.Alert) *domain.Alert {
	copied := source
	if len(source.Actions) > 0 {
		copied.Actions = append([]string(nil), source.Actions...)
	}
	if len(source.Tags) > 0 {
		copied.Tags = append([]string(nil), source.Tags...)
	}
	if source.AcknowledgedAt != nil {
		ackAt := *source.AcknowledgedAt
		copied.AcknowledgedAt = &ackAt
	}
	if source.ResolvedAt != nil {
		resolvedAt := *source.ResolvedAt
		copied.ResolvedAt = &resolvedAt
	}
	return &copied
}
