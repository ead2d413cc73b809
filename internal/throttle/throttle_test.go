package throttle

import (
	"testing"
	"time"
)

func TestGuardAllowsFirstAndBlocksWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	guard := NewGuard(time.Minute, func() time.Time { return now })

	if !guard.Allow("db:down") {
		t.Fatalf("expected first create to pass")
	}
	now = now.Add(30 * time.Second)
	if guard.Allow("db:down") {
		t.Fatalf("expected create inside window to be throttled")
	}
	if !guard.Allow("cache:down") {
		t.Fatalf("expected distinct key to pass")
	}
}

func TestGuardThrottledAttemptRefreshesWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	guard := NewGuard(time.Minute, func() time.Time { return now })

	if !guard.Allow("db:down") {
		t.Fatalf("expected first create to pass")
	}
	now = now.Add(45 * time.Second)
	if guard.Allow("db:down") {
		t.Fatalf("expected throttled attempt at 45s")
	}
	// The 45s attempt refreshed the window; 30s later is still inside it.
	now = now.Add(30 * time.Second)
	if guard.Allow("db:down") {
		t.Fatalf("expected refreshed window to still throttle")
	}
	now = now.Add(time.Minute)
	if !guard.Allow("db:down") {
		t.Fatalf("expected create after full idle window to pass")
	}
}

func TestGuardBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	guard := NewGuard(time.Minute, func() time.Time { return now })

	guard.Allow("api:slow")
	now = now.Add(time.Minute)
	if !guard.Allow("api:slow") {
		t.Fatalf("expected create at exactly window boundary to pass")
	}
}

func TestGuardCompactDropsStaleEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	guard := NewGuard(time.Minute, func() time.Time { return now })

	guard.Allow("a:x")
	guard.Allow("b:y")
	now = now.Add(2 * time.Minute)
	guard.Allow("c:z")

	if dropped := guard.Compact(); dropped != 2 {
		t.Fatalf("expected 2 stale entries dropped, got %d", dropped)
	}
	if size := guard.Len(); size != 1 {
		t.Fatalf("expected 1 live entry, got %d", size)
	}
}
