package throttle

import (
	"sync"
	"time"
)

// Guard is fixed-window limiter for near-duplicate alert creates.
// Params: cooldown window, injected now function, and last-accepted map.
// Returns: per-key damping decision for the lifecycle engine.
type Guard struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	lastSeen map[string]time.Time
}

// NewGuard creates throttle guard with cooldown window.
// Params: window duration and now function (defaults to time.Now when nil).
// Returns: initialized guard.
func NewGuard(window time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		window:   window,
		now:      now,
		lastSeen: make(map[string]time.Time),
	}
}

// Allow decides whether one throttle key may fire and refreshes its entry.
// Params: throttle key derived from component and title.
// Returns: false when a prior entry exists inside the cooldown window.
// The decision is based on the previous entry; the entry is then refreshed
// unconditionally, so this is a fixed-window limiter, not a token bucket.
func (g *Guard) Allow(key string) bool {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	previous, seen := g.lastSeen[key]
	g.lastSeen[key] = now
	if !seen {
		return true
	}
	return now.Sub(previous) >= g.window
}

// Compact evicts entries older than the cooldown window.
// Params: none.
// Returns: number of evicted keys.
func (g *Guard) Compact() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, previous := range g.lastSeen {
		if now.Sub(previous) >= g.window {
			delete(g.lastSeen, key)
			removed++
		}
	}
	return removed
}

// Len returns current tracked key count.
// Params: none.
// Returns: number of keys inside the map.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastSeen)
}
