// Package sync keeps every configured tenant/category's published
// schedule current. A cron driver enqueues one work unit per pair each
// cycle; a fixed worker pool drains them with per-pair exclusivity and a
// shared outbound rate limit.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"foraybot/internal/model"
	"foraybot/internal/raid"
	"foraybot/internal/render"
	"foraybot/internal/store"
	"foraybot/internal/transport"
	"foraybot/internal/upstream"
	"foraybot/pkg/logx"
)

type Config struct {
	// Interval between cycles. Overlapping ticks are skipped, not queued.
	Interval time.Duration
	// Workers bounds concurrent fetch/render/publish sequences.
	Workers int
	// WindowDays is the future window fetched from the upstream feed.
	WindowDays int
	// PublishPerSecond and PublishBurst shape the shared outbound limiter.
	PublishPerSecond float64
	PublishBurst     int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 90
	}
	if c.PublishPerSecond <= 0 {
		c.PublishPerSecond = 5
	}
	if c.PublishBurst <= 0 {
		c.PublishBurst = 10
	}
	return c
}

// unit is one (tenant, category) synchronization pass. Each unit owns its
// tenant clone; nothing is shared with concurrently running units.
type unit struct {
	id       string
	tenant   *model.Tenant
	category raid.Category
	forced   bool
	done     *sync.WaitGroup
}

func (u unit) key() string { return u.tenant.GuildID + "/" + string(u.category) }

// Scheduler drives the periodic synchronization cycles.
type Scheduler struct {
	store     store.GuildStore
	feed      upstream.Feed
	renderer  render.Renderer
	transport transport.Transport
	limiter   *rate.Limiter
	log       logx.Logger

	mu  sync.Mutex
	cfg Config
	// inflight holds the (tenant, category) pairs currently executing.
	inflight map[string]struct{}

	queue    chan unit
	priority chan unit

	cycleActive atomic.Bool
	cron        *cron.Cron
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	now func() time.Time
}

func New(cfg Config, st store.GuildStore, feed upstream.Feed, r render.Renderer, tr transport.Transport, log logx.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		store:     st,
		feed:      feed,
		renderer:  r,
		transport: tr,
		limiter:   rate.NewLimiter(rate.Limit(cfg.PublishPerSecond), cfg.PublishBurst),
		log:       log,
		cfg:       cfg,
		inflight:  make(map[string]struct{}),
		queue:     make(chan unit, 64),
		priority:  make(chan unit, 16),
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the worker pool and the cycle timer.
func (s *Scheduler) Start(ctx context.Context) error {
	s.startWorkers(ctx)

	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := c.AddFunc(spec, func() { s.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("schedule cycle %q: %w", spec, err)
	}
	c.Start()
	s.cron = c

	s.log.Info("sync scheduler started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Int("workers", s.cfg.Workers))
	return nil
}

func (s *Scheduler) startWorkers(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
}

// Stop halts the timer, then waits for in-flight units to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		close(s.stopCh)
		s.wg.Wait()
		s.log.Info("sync scheduler stopped")
	})
}

// Apply adjusts the knobs that can change without a restart. Interval and
// worker-count changes take effect on the next process start.
func (s *Scheduler) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.limiter.SetLimit(rate.Limit(cfg.PublishPerSecond))
	s.limiter.SetBurst(cfg.PublishBurst)

	s.mu.Lock()
	s.cfg.WindowDays = cfg.WindowDays
	s.cfg.PublishPerSecond = cfg.PublishPerSecond
	s.cfg.PublishBurst = cfg.PublishBurst
	s.mu.Unlock()
}

func (s *Scheduler) windowDays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.WindowDays
}

// RunCycle enumerates the auto-update tenants and drains one unit per
// configured category. It returns once every unit of this cycle finished;
// a tick arriving while a cycle is still draining is skipped and logged.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.cycleActive.CompareAndSwap(false, true) {
		s.log.Warn("previous sync cycle still draining, skipping tick")
		return
	}
	defer s.cycleActive.Store(false)

	start := s.now()
	tenants, err := s.store.ListAutoUpdate(ctx)
	if err != nil {
		s.log.Error("cycle tenant enumeration failed", logx.Err(err))
		return
	}

	var wg sync.WaitGroup
	units := 0
enqueue:
	for _, tenant := range tenants {
		for _, cat := range tenant.ConfiguredCategories() {
			u := unit{
				id:       shortID(),
				tenant:   tenant.Clone(),
				category: cat,
				done:     &wg,
			}
			wg.Add(1)
			select {
			case s.queue <- u:
				units++
			case <-ctx.Done():
				wg.Done()
				break enqueue
			case <-s.stopCh:
				wg.Done()
				break enqueue
			}
		}
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-ctx.Done():
	case <-s.stopCh:
	}
	select {
	case <-finished:
	default:
		// Shutdown arrived mid-cycle. Release the units still sitting in
		// the queue so only the executing ones remain outstanding.
		s.drainQueued()
		<-finished
		s.log.Warn("sync cycle aborted by shutdown", logx.Int("units", units))
		return
	}

	s.log.Info("sync cycle completed",
		logx.Int("tenants", len(tenants)),
		logx.Int("units", units),
		logx.Duration("took", s.now().Sub(start)))
}

// ForceUpdate synchronizes one tenant's categories ahead of queued cycle
// work. It shares the worker pool and per-pair exclusivity with RunCycle.
func (s *Scheduler) ForceUpdate(ctx context.Context, guildID string) error {
	tenant, err := s.store.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", guildID, err)
	}
	if tenant == nil {
		return fmt.Errorf("unknown tenant %s", guildID)
	}

	cats := tenant.ConfiguredCategories()
	if len(cats) == 0 {
		return nil
	}
	for _, cat := range cats {
		u := unit{id: shortID(), tenant: tenant.Clone(), category: cat, forced: true}
		select {
		case s.priority <- u:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return errors.New("scheduler stopped")
		}
	}
	s.log.Info("forced update queued",
		logx.String("guild", guildID), logx.Int("units", len(cats)))
	return nil
}

func (s *Scheduler) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

// acquireWait blocks until the pair is free, the context ends, or the
// scheduler stops. Returns whether the key was acquired.
func (s *Scheduler) acquireWait(ctx context.Context, key string) bool {
	t := time.NewTicker(25 * time.Millisecond)
	defer t.Stop()
	for {
		if s.tryAcquire(key) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.stopCh:
			return false
		case <-t.C:
		}
	}
}

// drainQueued empties the cycle queue without executing the units,
// counting each one down so a waiting RunCycle can return. Only called
// on the shutdown paths.
func (s *Scheduler) drainQueued() {
	for {
		select {
		case u := <-s.queue:
			if u.done != nil {
				u.done.Done()
			}
		default:
			return
		}
	}
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

func shortID() string {
	return uuid.NewString()[:8]
}
