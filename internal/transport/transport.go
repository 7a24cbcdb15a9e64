// Package transport defines the call/return contract with the recipient
// channel transport. The engine never sees the wire format; everything is
// expressed as fallible operations on opaque identifiers.
package transport

import "context"

// Capability names one channel-level permission the agent may hold.
type Capability string

const (
	CapView        Capability = "View Channel"
	CapSend        Capability = "Send Messages"
	CapEmbedLinks  Capability = "Embed Links"
	CapAttachFiles Capability = "Attach Files"
	CapReadHistory Capability = "Read Message History"
	CapManage      Capability = "Manage Channels"
)

// RequiredCapabilities is the fixed set a schedule channel must grant
// before it can be used.
var RequiredCapabilities = []Capability{
	CapView, CapSend, CapEmbedLinks, CapAttachFiles, CapReadHistory,
}

// CapabilitySet is the set of capabilities held on one channel.
type CapabilitySet map[Capability]bool

// Missing returns the required capabilities absent from s, in required
// order.
func (s CapabilitySet) Missing() []Capability {
	var out []Capability
	for _, c := range RequiredCapabilities {
		if !s[c] {
			out = append(out, c)
		}
	}
	return out
}

// ChannelPolicy controls how a created channel is locked down.
type ChannelPolicy struct {
	// ReadOnly hides send access from ordinary members while keeping the
	// agent able to post.
	ReadOnly bool
	Topic    string
}

// AgentStatus describes the elevated-capability agent inside one guild.
type AgentStatus struct {
	// CanManageChannels reports guild-wide channel management capability.
	CanManageChannels bool
	// RoleRank is the agent's highest role position; auto-creation and
	// auto-grants require rank above the floor.
	RoleRank int
	RoleName string
}

// MinRoleRank is the hierarchy floor: an agent at or below this rank
// cannot create channels or grant overwrites.
const MinRoleRank = 1

// Content is an opaque renderable payload produced by the renderer.
type Content struct {
	// Body is the rendered payload handed to the transport unchanged.
	Body string
	// Key is a stable content key for the payload.
	Key string
}

// Transport is the outbound side of the engine. All methods are fallible;
// failures map onto the sentinel errors in errors.go where the condition
// is recognizable.
type Transport interface {
	// Publish posts new content into a channel and returns the message id.
	Publish(ctx context.Context, channelID string, content Content) (string, error)
	// Edit replaces the content of an existing message. A deleted message
	// yields ErrNotFound; callers recreate via Publish.
	Edit(ctx context.Context, channelID, messageID string, content Content) error
	// CreateChannel creates a new recipient channel in the guild.
	CreateChannel(ctx context.Context, guildID, name string, policy ChannelPolicy) (string, error)
	// GrantCapabilities applies the given capabilities to the agent's role
	// on one channel.
	GrantCapabilities(ctx context.Context, channelID string, caps []Capability) error
	// CheckCapabilities reports the capabilities the agent holds on a
	// channel.
	CheckCapabilities(ctx context.Context, channelID string) (CapabilitySet, error)
	// AgentStatus reports the agent's guild-wide standing.
	AgentStatus(ctx context.Context, guildID string) (AgentStatus, error)
}
