package app

import (
	"context"
	"testing"
	"time"

	"foraybot/internal/ratelimit"
	"foraybot/internal/setup"
	"foraybot/pkg/logx"
)

type stubFlow struct {
	begins  int
	handles int
}

func (s *stubFlow) Begin(context.Context, string, string) (setup.Result, error) {
	s.begins++
	return setup.Result{Prompt: "started"}, nil
}

func (s *stubFlow) Handle(context.Context, string, setup.Event) (setup.Result, error) {
	s.handles++
	return setup.Result{}, nil
}

func newTestGate() (*Gate, *stubFlow, *int) {
	lim := ratelimit.New(ratelimit.Config{
		CommandCooldown:     time.Hour,
		InteractionCooldown: time.Hour,
	}, logx.Nop())
	flow := &stubFlow{}
	forced := 0
	g := NewGate(lim, flow, func(context.Context, string) error {
		forced++
		return nil
	}, logx.Nop())
	return g, flow, &forced
}

func TestGateBlocksRepeatedCommand(t *testing.T) {
	t.Parallel()
	g, flow, _ := newTestGate()
	ctx := context.Background()

	res, d, err := g.BeginSetup(ctx, "actor", "g1")
	if err != nil || !d.Allowed {
		t.Fatalf("first command: allowed=%v err=%v", d.Allowed, err)
	}
	if res.Prompt != "started" {
		t.Fatalf("flow result not passed through: %+v", res)
	}

	_, d, err = g.BeginSetup(ctx, "actor", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("second command inside cooldown was admitted")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("denial carries no retry hint: %+v", d)
	}
	if flow.begins != 1 {
		t.Fatalf("denied command reached the flow: %d begins", flow.begins)
	}
}

func TestGateCooldownsArePerAction(t *testing.T) {
	t.Parallel()
	g, flow, forced := newTestGate()
	ctx := context.Background()

	if _, d, _ := g.BeginSetup(ctx, "actor", "g1"); !d.Allowed {
		t.Fatal("setup command denied")
	}
	// Different action keys: the setup cooldown does not block a setup
	// step or a forced update from the same actor.
	if _, d, _ := g.HandleSetup(ctx, "actor", setup.Cancel{}); !d.Allowed {
		t.Fatal("setup step blocked by the command cooldown")
	}
	if d, _ := g.ForceUpdate(ctx, "actor", "g1"); !d.Allowed {
		t.Fatal("forced update blocked by the setup cooldown")
	}
	if flow.begins != 1 || flow.handles != 1 || *forced != 1 {
		t.Fatalf("calls: begins=%d handles=%d forced=%d", flow.begins, flow.handles, *forced)
	}
}

func TestGateForceUpdateDeniedSkipsScheduler(t *testing.T) {
	t.Parallel()
	g, _, forced := newTestGate()
	ctx := context.Background()

	if d, err := g.ForceUpdate(ctx, "actor", "g1"); err != nil || !d.Allowed {
		t.Fatalf("first update: allowed=%v err=%v", d.Allowed, err)
	}
	d, err := g.ForceUpdate(ctx, "actor", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("second update inside cooldown was admitted")
	}
	if *forced != 1 {
		t.Fatalf("denied update reached the scheduler: %d calls", *forced)
	}
}
