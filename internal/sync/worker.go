package sync

import (
	"context"
	"errors"

	"foraybot/internal/changedetect"
	"foraybot/internal/transport"
	"foraybot/pkg/logx"
)

func (s *Scheduler) worker(ctx context.Context, idx int) {
	defer s.wg.Done()
	defer s.drainQueued()
	for {
		// Fast-exit check so a closed stopCh wins over queued work, and
		// forced units drain ahead of cycle work.
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case u := <-s.priority:
			s.exec(ctx, u)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case u := <-s.priority:
			s.exec(ctx, u)
		case u := <-s.queue:
			s.exec(ctx, u)
		}
	}
}

func (s *Scheduler) exec(ctx context.Context, u unit) {
	if u.done != nil {
		defer u.done.Done()
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sync unit panicked",
				logx.String("unit", u.id),
				logx.String("pair", u.key()),
				logx.Any("panic", r))
		}
	}()

	// A pair never runs concurrently with itself. Cycle units are skipped
	// when the pair is busy (the next cycle retries); forced units wait
	// their turn so an interactive update is serialized, not dropped.
	if u.forced {
		if !s.acquireWait(ctx, u.key()) {
			return
		}
	} else if !s.tryAcquire(u.key()) {
		s.log.Debug("unit already in flight, skipping",
			logx.String("unit", u.id),
			logx.String("pair", u.key()))
		return
	}
	defer s.release(u.key())

	s.syncOne(ctx, u)
}

// syncOne runs the fetch, render, hash, publish sequence for one pair.
// Failures are logged and the hash is left uncommitted so the next cycle
// retries the same content.
func (s *Scheduler) syncOne(ctx context.Context, u unit) {
	log := s.log.With(
		logx.String("unit", u.id),
		logx.String("guild", u.tenant.GuildID),
		logx.String("category", string(u.category)))

	cc := u.tenant.Categories[u.category]
	if !cc.Configured() {
		return
	}

	grouped, err := s.feed.ListRuns(ctx, u.category, cc.EnabledHosts, s.windowDays())
	if err != nil {
		log.Warn("upstream fetch failed", logx.Err(err))
		return
	}

	now := s.now()
	hash := changedetect.ComputeHash(u.category, grouped, now)
	if !changedetect.HasChanged(u.tenant, u.category, hash) {
		log.Debug("content unchanged, skipping publish")
		return
	}

	content := s.renderer.Render(u.tenant, u.category, grouped, now)

	messageID := cc.MessageID
	if messageID != "" {
		if err = s.waitOutbound(ctx, log); err != nil {
			return
		}
		err = s.transport.Edit(ctx, cc.ChannelID, messageID, content)
		if errors.Is(err, transport.ErrNotFound) {
			log.Info("published message gone, recreating",
				logx.String("message", messageID))
			messageID = ""
			err = nil
		}
	}
	if err == nil && messageID == "" {
		if err = s.waitOutbound(ctx, log); err != nil {
			return
		}
		messageID, err = s.transport.Publish(ctx, cc.ChannelID, content)
	}
	if err != nil {
		var perm *transport.PermissionError
		if errors.As(err, &perm) {
			log.Warn("publish blocked by missing capabilities",
				logx.Any("missing", perm.Missing))
		} else {
			log.Warn("publish failed", logx.Err(err))
		}
		return
	}

	changedetect.Commit(u.tenant, u.category, hash)
	cc.MessageID = messageID
	if err := s.store.SetCategoryState(ctx, u.tenant.GuildID, u.category, hash, messageID); err != nil {
		log.Error("persisting category state failed", logx.Err(err))
		return
	}

	log.Info("schedule published",
		logx.String("message", messageID),
		logx.Uint64("hash", hash),
		logx.Bool("forced", u.forced))
}

func (s *Scheduler) waitOutbound(ctx context.Context, log logx.Logger) error {
	if err := s.limiter.Wait(ctx); err != nil {
		log.Debug("outbound wait aborted", logx.Err(err))
		return err
	}
	return nil
}
