package ratelimit

import (
	"sync"
	"testing"
	"time"

	"foraybot/pkg/logx"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg, logx.Nop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCooldownDeniesWithinInterval(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(Config{})

	if d := l.CheckCooldown("u1", "schedule", 3*time.Second); !d.Allowed {
		t.Fatalf("first call denied: %+v", d)
	}

	*now = now.Add(1 * time.Second)
	d := l.CheckCooldown("u1", "schedule", 3*time.Second)
	if d.Allowed {
		t.Fatal("second call within cooldown was allowed")
	}
	if d.RetryAfter != 2 {
		t.Fatalf("RetryAfter = %d, want 2", d.RetryAfter)
	}

	*now = now.Add(2 * time.Second)
	if d := l.CheckCooldown("u1", "schedule", 3*time.Second); !d.Allowed {
		t.Fatalf("call after cooldown denied: %+v", d)
	}
}

func TestCooldownIsPerActionAndPerActor(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(Config{})

	if d := l.CheckCooldown("u1", "schedule", 3*time.Second); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d := l.CheckCooldown("u1", "button", 3*time.Second); !d.Allowed {
		t.Fatal("different action key shared a cooldown")
	}
	if d := l.CheckCooldown("u2", "schedule", 3*time.Second); !d.Allowed {
		t.Fatal("different actor shared a cooldown")
	}
}

func TestWindowDeniesExactlyAtLimit(t *testing.T) {
	t.Parallel()
	const maxN = 5
	l, now := newTestLimiter(Config{Window: time.Minute, MaxPerWindow: maxN})

	for i := 0; i < maxN; i++ {
		*now = now.Add(time.Second)
		if d := l.CheckWindow("u1"); !d.Allowed {
			t.Fatalf("call %d denied early", i+1)
		}
	}

	*now = now.Add(time.Second)
	d := l.CheckWindow("u1")
	if d.Allowed {
		t.Fatal("call over the window limit was allowed")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %d, want positive", d.RetryAfter)
	}

	// Once the oldest entry leaves the window a new call is admitted.
	*now = now.Add(time.Minute)
	if d := l.CheckWindow("u1"); !d.Allowed {
		t.Fatalf("call after window elapsed denied: %+v", d)
	}
}

func TestWindowDenialDoesNotChargeCooldown(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(Config{Window: time.Minute, MaxPerWindow: 1})

	if d := l.CheckCooldown("u1", "schedule", time.Second); !d.Allowed {
		t.Fatal("first call denied")
	}

	// Window is now full; the next check must be a window denial that
	// leaves the cooldown timestamp untouched.
	*now = now.Add(2 * time.Second)
	if d := l.CheckCooldown("u1", "schedule", time.Second); d.Allowed {
		t.Fatal("expected window denial")
	}

	// After the window clears, the cooldown from the first call has long
	// elapsed, so the action is admitted immediately.
	*now = now.Add(time.Minute)
	if d := l.CheckCooldown("u1", "schedule", time.Second); !d.Allowed {
		t.Fatalf("call after window cleared denied: %+v", d)
	}
}

func TestClearDropsActorState(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(Config{Window: time.Minute, MaxPerWindow: 1})

	if d := l.CheckCooldown("u1", "schedule", time.Hour); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d := l.CheckCooldown("u1", "schedule", time.Hour); d.Allowed {
		t.Fatal("expected denial before clear")
	}

	l.Clear("u1")
	if d := l.CheckCooldown("u1", "schedule", time.Hour); !d.Allowed {
		t.Fatalf("call after clear denied: %+v", d)
	}
}

func TestSweepBoundsMemoryWithoutChangingOutcomes(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(Config{Window: time.Minute, MaxPerWindow: 30})

	l.CheckCooldown("u1", "schedule", time.Second)
	l.CheckCooldown("u2", "schedule", time.Hour)

	// u1's entry ages past 10x its interval; u2's does not.
	*now = now.Add(time.Minute)
	l.Sweep()

	st := l.Stats()
	if st.Cooldowns != 1 {
		t.Fatalf("Cooldowns = %d, want 1", st.Cooldowns)
	}
	if st.TrackedActors != 0 {
		t.Fatalf("TrackedActors = %d, want 0 (windows drained)", st.TrackedActors)
	}

	// u2 is still inside its one-hour cooldown after the sweep.
	if d := l.CheckCooldown("u2", "schedule", time.Hour); d.Allowed {
		t.Fatal("sweep changed a deny outcome")
	}
}

func TestConcurrentChecksAreSafe(t *testing.T) {
	t.Parallel()
	l := New(Config{Window: time.Minute, MaxPerWindow: 1000}, logx.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := string(rune('a' + n%4))
			for j := 0; j < 50; j++ {
				l.CheckCooldown(actor, "button", time.Millisecond)
				l.CheckWindow(actor)
			}
		}(i)
	}
	wg.Wait()

	if st := l.Stats(); st.TrackedActors == 0 {
		t.Fatal("expected tracked actors after concurrent checks")
	}
}
