// Package app wires the engine together. Every component receives its
// collaborators at construction; nothing is looked up at runtime.
package app

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"foraybot/internal/config"
	"foraybot/internal/ratelimit"
	"foraybot/internal/render"
	"foraybot/internal/setup"
	"foraybot/internal/store"
	"foraybot/internal/sync"
	"foraybot/internal/transport"
	"foraybot/internal/upstream"
	"foraybot/pkg/logx"
)

type App struct {
	cfgMgr   *config.Manager
	log      logx.Logger
	logClose func() error

	store     *store.SQLite
	limiter   *ratelimit.Limiter
	sessions  *setup.Sessions
	setup     *setup.Engine
	scheduler *sync.Scheduler
	gate      *Gate

	stopCh      chan struct{}
	cancelWatch context.CancelFunc
	wg          stdsync.WaitGroup
	stopOnce    stdsync.Once
}

// New loads the configuration and constructs the full component graph.
// The transport is injected by the caller; the engine itself never builds
// one.
func New(cfgPath string, tr transport.Transport) (*App, error) {
	mgr := config.NewManager(cfgPath, logx.NewConsole("info"))
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	log, logClose := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(log.With(logx.String("component", "config")))

	a := &App{
		cfgMgr:   mgr,
		log:      log,
		logClose: logClose,
		stopCh:   make(chan struct{}),
	}

	busyTimeout, _ := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	a.store, err = store.Open(store.Config{
		Path:          cfg.Store.Path,
		EncryptionKey: cfg.Store.EncryptionKey,
		BusyTimeout:   busyTimeout,
	}, log.With(logx.String("component", "store")))
	if err != nil {
		_ = logClose()
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.limiter = ratelimit.New(admissionConfig(cfg), log.With(logx.String("component", "admission")))

	upstreamTimeout, _ := config.ParseDurationOrDefault("upstream.timeout", cfg.Upstream.Timeout, 30*time.Second)
	feed := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: upstreamTimeout,
	}, nil, log.With(logx.String("component", "upstream")))

	a.scheduler = sync.New(syncConfig(cfg), a.store, feed, render.NewText(), tr,
		log.With(logx.String("component", "sync")))

	sessionTTL, _ := config.ParseDurationField("setup.session_ttl", cfg.Setup.SessionTTL)
	a.sessions = setup.NewSessions(sessionTTL, log.With(logx.String("component", "setup")))
	a.setup = setup.NewEngine(a.sessions, a.store, tr, a.forceSync,
		log.With(logx.String("component", "setup")))
	a.gate = NewGate(a.limiter, a.setup, a.scheduler.ForceUpdate,
		log.With(logx.String("component", "gate")))

	return a, nil
}

func (a *App) forceSync(ctx context.Context, guildID string) {
	if err := a.scheduler.ForceUpdate(ctx, guildID); err != nil {
		a.log.Warn("forced update after setup failed",
			logx.String("guild", guildID), logx.Err(err))
	}
}

// Gate exposes the admission-checked entry points to the command surface.
func (a *App) Gate() *Gate { return a.gate }

// Admission exposes the rate limiter for administrative overrides
// (Clear, Stats). Regular actor traffic goes through the Gate.
func (a *App) Admission() *ratelimit.Limiter { return a.limiter }

func (a *App) Start(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.wg.Add(2)
	go func() { defer a.wg.Done(); a.limiter.Run(a.stopCh) }()
	go func() { defer a.wg.Done(); a.sessions.Run(a.stopCh) }()

	watchCtx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel
	updates := a.cfgMgr.Subscribe(1)
	a.wg.Add(2)
	go func() { defer a.wg.Done(); a.cfgMgr.Watch(watchCtx) }()
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg := <-updates:
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("foraybot started")
	return nil
}

// applyConfig pushes the reloadable knobs into running components.
// Interval, worker count and store settings need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.scheduler.Apply(syncConfig(cfg))
	a.log.Info("runtime config applied",
		logx.Int("window_days", cfg.Sync.WindowDays),
		logx.Any("publish_per_second", cfg.Sync.PublishPerSecond))
}

func (a *App) Stop(context.Context) error {
	a.stopOnce.Do(func() {
		if a.cancelWatch != nil {
			a.cancelWatch()
		}
		a.scheduler.Stop()
		close(a.stopCh)
		a.wg.Wait()
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close failed", logx.Err(err))
		}
		a.log.Info("foraybot stopped")
		_ = a.logClose()
	})
	return nil
}

func syncConfig(cfg *config.Config) sync.Config {
	interval, _ := config.ParseDurationField("sync.interval", cfg.Sync.Interval)
	return sync.Config{
		Interval:         interval,
		Workers:          cfg.Sync.Workers,
		WindowDays:       cfg.Sync.WindowDays,
		PublishPerSecond: cfg.Sync.PublishPerSecond,
		PublishBurst:     cfg.Sync.PublishBurst,
	}
}

func admissionConfig(cfg *config.Config) ratelimit.Config {
	command, _ := config.ParseDurationField("admission.command_cooldown", cfg.Admission.CommandCooldown)
	interaction, _ := config.ParseDurationField("admission.interaction_cooldown", cfg.Admission.InteractionCooldown)
	window, _ := config.ParseDurationField("admission.window", cfg.Admission.Window)
	sweep, _ := config.ParseDurationField("admission.sweep_interval", cfg.Admission.SweepInterval)
	return ratelimit.Config{
		CommandCooldown:     command,
		InteractionCooldown: interaction,
		Window:              window,
		MaxPerWindow:        cfg.Admission.MaxPerWindow,
		SweepInterval:       sweep,
	}
}
