package app

import (
	"context"

	"foraybot/internal/ratelimit"
	"foraybot/internal/setup"
	"foraybot/pkg/logx"
)

// setupFlow is the slice of the setup engine the gate fronts.
type setupFlow interface {
	Begin(ctx context.Context, actorID, guildID string) (setup.Result, error)
	Handle(ctx context.Context, actorID string, ev setup.Event) (setup.Result, error)
}

// Gate is the admission-checked front door for actor-triggered work. The
// command surface calls it instead of reaching the setup engine or the
// scheduler directly, so every user action clears the cooldown and
// sliding-window checks first. A denial is reported as a Decision value;
// the underlying component is never invoked.
type Gate struct {
	limiter *ratelimit.Limiter
	flow    setupFlow
	force   func(ctx context.Context, guildID string) error
	log     logx.Logger
}

func NewGate(limiter *ratelimit.Limiter, flow setupFlow, force func(context.Context, string) error, log logx.Logger) *Gate {
	return &Gate{limiter: limiter, flow: flow, force: force, log: log}
}

// BeginSetup starts a setup flow once the actor clears the command
// cooldown.
func (g *Gate) BeginSetup(ctx context.Context, actorID, guildID string) (setup.Result, ratelimit.Decision, error) {
	d := g.limiter.CheckCooldown(actorID, "setup", g.limiter.CommandCooldown())
	if !d.Allowed {
		g.denied("setup", actorID, d)
		return setup.Result{}, d, nil
	}
	res, err := g.flow.Begin(ctx, actorID, guildID)
	return res, d, err
}

// HandleSetup applies one setup event behind the interaction cooldown.
func (g *Gate) HandleSetup(ctx context.Context, actorID string, ev setup.Event) (setup.Result, ratelimit.Decision, error) {
	d := g.limiter.CheckCooldown(actorID, "setup.step", g.limiter.InteractionCooldown())
	if !d.Allowed {
		g.denied("setup.step", actorID, d)
		return setup.Result{}, d, nil
	}
	res, err := g.flow.Handle(ctx, actorID, ev)
	return res, d, err
}

// ForceUpdate re-synchronizes one tenant behind the command cooldown.
func (g *Gate) ForceUpdate(ctx context.Context, actorID, guildID string) (ratelimit.Decision, error) {
	d := g.limiter.CheckCooldown(actorID, "update", g.limiter.CommandCooldown())
	if !d.Allowed {
		g.denied("update", actorID, d)
		return d, nil
	}
	return d, g.force(ctx, guildID)
}

func (g *Gate) denied(action, actorID string, d ratelimit.Decision) {
	g.log.Debug("action rate limited",
		logx.String("action", action),
		logx.String("actor", actorID),
		logx.Int("retry_after", d.RetryAfter))
}
