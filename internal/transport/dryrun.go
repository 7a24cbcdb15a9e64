package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"foraybot/pkg/logx"
)

// DryRun is a Transport that performs no outbound calls. It logs every
// operation and hands back generated identifiers, which makes the full
// engine runnable without a wired chat client (local operation, smoke
// tests, staged rollouts).
type DryRun struct {
	log logx.Logger

	mu sync.Mutex
	// messages remembers generated ids so Edit can distinguish a known
	// message from a deleted one.
	messages map[string]struct{}
}

func NewDryRun(log logx.Logger) *DryRun {
	return &DryRun{log: log, messages: make(map[string]struct{})}
}

func (d *DryRun) Publish(_ context.Context, channelID string, content Content) (string, error) {
	id := uuid.NewString()
	d.mu.Lock()
	d.messages[id] = struct{}{}
	d.mu.Unlock()

	d.log.Info("dry-run publish",
		logx.String("channel", channelID),
		logx.String("message", id),
		logx.String("key", content.Key),
		logx.Int("bytes", len(content.Body)))
	return id, nil
}

func (d *DryRun) Edit(_ context.Context, channelID, messageID string, content Content) error {
	d.mu.Lock()
	_, known := d.messages[messageID]
	d.mu.Unlock()
	if !known {
		return ErrNotFound
	}

	d.log.Info("dry-run edit",
		logx.String("channel", channelID),
		logx.String("message", messageID),
		logx.String("key", content.Key),
		logx.Int("bytes", len(content.Body)))
	return nil
}

func (d *DryRun) CreateChannel(_ context.Context, guildID, name string, policy ChannelPolicy) (string, error) {
	id := uuid.NewString()
	d.log.Info("dry-run channel creation",
		logx.String("guild", guildID),
		logx.String("name", name),
		logx.String("channel", id),
		logx.Bool("read_only", policy.ReadOnly))
	return id, nil
}

func (d *DryRun) GrantCapabilities(_ context.Context, channelID string, caps []Capability) error {
	d.log.Info("dry-run capability grant",
		logx.String("channel", channelID),
		logx.Any("capabilities", caps))
	return nil
}

func (d *DryRun) CheckCapabilities(context.Context, string) (CapabilitySet, error) {
	caps := make(CapabilitySet, len(RequiredCapabilities))
	for _, c := range RequiredCapabilities {
		caps[c] = true
	}
	return caps, nil
}

func (d *DryRun) AgentStatus(context.Context, string) (AgentStatus, error) {
	return AgentStatus{CanManageChannels: true, RoleRank: MinRoleRank + 1, RoleName: "foraybot"}, nil
}
