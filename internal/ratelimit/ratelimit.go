// Package ratelimit gates user-triggered actions before they reach the
// setup flow or the sync path. Two tiers: a per-(actor, action) cooldown
// and a per-actor sliding request window that is always consulted first.
package ratelimit

import (
	"sync"
	"time"

	"foraybot/pkg/logx"
)

// Config carries the admission knobs. Zero values fall back to the
// reference deployment defaults.
type Config struct {
	CommandCooldown     time.Duration
	InteractionCooldown time.Duration
	Window              time.Duration
	MaxPerWindow        int
	SweepInterval       time.Duration
}

func (c Config) withDefaults() Config {
	if c.CommandCooldown <= 0 {
		c.CommandCooldown = 3 * time.Second
	}
	if c.InteractionCooldown <= 0 {
		c.InteractionCooldown = time.Second
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = 30
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Decision is the outcome of an admission check. It is a value, never an
// error: a denial is control flow, not a fault.
type Decision struct {
	Allowed bool
	// RetryAfter is the whole-second wait reported to the actor on denial.
	RetryAfter int
}

var allow = Decision{Allowed: true}

type cooldownEntry struct {
	last     time.Time
	interval time.Duration
}

// Limiter is safe for concurrent use; a single mutex guards both maps
// since checks from different actors arrive interleaved.
type Limiter struct {
	mu        sync.Mutex
	cfg       Config
	cooldowns map[string]cooldownEntry
	windows   map[string][]time.Time
	log       logx.Logger

	now func() time.Time
}

func New(cfg Config, log logx.Logger) *Limiter {
	return &Limiter{
		cfg:       cfg.withDefaults(),
		cooldowns: make(map[string]cooldownEntry),
		windows:   make(map[string][]time.Time),
		log:       log,
		now:       time.Now,
	}
}

// CommandCooldown returns the configured per-command interval.
func (l *Limiter) CommandCooldown() time.Duration { return l.cfg.CommandCooldown }

// InteractionCooldown returns the configured per-interaction interval.
func (l *Limiter) InteractionCooldown() time.Duration { return l.cfg.InteractionCooldown }

// CheckCooldown admits one (actor, action) invocation unless it arrives
// within minInterval of the previous one. The sliding window is consulted
// first; an actor blocked by the window is not charged against the
// cooldown.
func (l *Limiter) CheckCooldown(actorID, actionKey string, minInterval time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if d := l.checkWindowLocked(actorID, now); !d.Allowed {
		return d
	}

	key := actorID + ":" + actionKey
	if e, ok := l.cooldowns[key]; ok {
		if since := now.Sub(e.last); since < minInterval {
			return Decision{RetryAfter: ceilSeconds(minInterval - since)}
		}
	}

	l.cooldowns[key] = cooldownEntry{last: now, interval: minInterval}
	l.recordLocked(actorID, now)
	return allow
}

// CheckWindow admits one invocation against the per-actor sliding window
// alone, recording it when allowed.
func (l *Limiter) CheckWindow(actorID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if d := l.checkWindowLocked(actorID, now); !d.Allowed {
		return d
	}
	l.recordLocked(actorID, now)
	return allow
}

// checkWindowLocked prunes and inspects the window without recording.
func (l *Limiter) checkWindowLocked(actorID string, now time.Time) Decision {
	recent := pruneBefore(l.windows[actorID], now.Add(-l.cfg.Window))
	l.windows[actorID] = recent

	if len(recent) >= l.cfg.MaxPerWindow {
		oldest := recent[0]
		wait := l.cfg.Window - now.Sub(oldest)
		l.log.Warn("request window exceeded",
			logx.String("actor", actorID),
			logx.Int("count", len(recent)),
			logx.Duration("retry_in", wait))
		return Decision{RetryAfter: ceilSeconds(wait)}
	}
	return allow
}

func (l *Limiter) recordLocked(actorID string, now time.Time) {
	l.windows[actorID] = append(l.windows[actorID], now)
}

// Clear drops all admission state for one actor (administrative override).
func (l *Limiter) Clear(actorID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := actorID + ":"
	for key := range l.cooldowns {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(l.cooldowns, key)
		}
	}
	delete(l.windows, actorID)
}

// Sweep removes cooldown entries older than 10x their own interval and
// drains empty window lists. It never changes allow/deny outcomes for
// current requests; it only bounds memory.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.cooldowns {
		if now.Sub(e.last) > e.interval*10 {
			delete(l.cooldowns, key)
		}
	}
	for actor, times := range l.windows {
		recent := pruneBefore(times, now.Add(-l.cfg.Window))
		if len(recent) == 0 {
			delete(l.windows, actor)
		} else {
			l.windows[actor] = recent
		}
	}

	l.log.Debug("admission sweep completed",
		logx.Int("cooldowns", len(l.cooldowns)),
		logx.Int("tracked_actors", len(l.windows)))
}

// Run drives periodic sweeps until done is closed. Callers usually launch it
// in its own goroutine.
func (l *Limiter) Run(done <-chan struct{}) {
	t := time.NewTicker(l.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			l.Sweep()
		}
	}
}

// Stats is a diagnostics snapshot.
type Stats struct {
	Cooldowns     int
	TrackedActors int
	TotalRequests int
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, times := range l.windows {
		total += len(times)
	}
	return Stats{Cooldowns: len(l.cooldowns), TrackedActors: len(l.windows), TotalRequests: total}
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0:0], times[i:]...)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
