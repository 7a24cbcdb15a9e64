// Package setup drives the multi-step configuration flow that collects a
// tenant's categories, channels and host servers before committing them
// in one write. The flow is an explicit state machine: a Session holds
// the State, the Engine applies Events and returns the next prompt.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foraybot/internal/model"
	"foraybot/internal/raid"
	"foraybot/internal/store"
	"foraybot/internal/transport"
	"foraybot/pkg/logx"
)

// ErrSessionExpired is returned when an event arrives for an actor with
// no live session, or for a session missing required context. The session
// is deleted rather than guessing intent.
var ErrSessionExpired = errors.New("setup session expired")

// ValidationError reports invalid actor input; the session stays live so
// the actor can retry.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Reason }

// Result is the outcome of one applied event, handed back to the
// presentation layer.
type Result struct {
	State State
	// Prompt is the human-readable status for the actor.
	Prompt string
	// Missing lists capabilities absent from a picked channel when the
	// flow could not grant them itself.
	Missing []transport.Capability
	// Retry marks that the current step offers a retry affordance.
	Retry bool
	// Delay asks the presentation layer to wait before swapping the menu,
	// so the actor can read a confirmation first.
	Delay time.Duration
	// Done marks the session as ended (committed or cancelled).
	Done bool
}

// ForceSync triggers an out-of-band synchronization pass for one tenant.
type ForceSync func(ctx context.Context, guildID string)

// Engine applies events to setup sessions. All collaborators are injected
// at construction.
type Engine struct {
	sessions  *Sessions
	store     store.GuildStore
	transport transport.Transport
	forceSync ForceSync
	log       logx.Logger

	// advanceDelay is the pause requested after automatic channel
	// creation or an auto-grant, before the next menu.
	advanceDelay time.Duration
}

func NewEngine(sessions *Sessions, st store.GuildStore, tr transport.Transport, forceSync ForceSync, log logx.Logger) *Engine {
	return &Engine{
		sessions:     sessions,
		store:        st,
		transport:    tr,
		forceSync:    forceSync,
		log:          log,
		advanceDelay: 2 * time.Second,
	}
}

// Begin starts (or restarts) a session for the actor. An existing tenant
// record makes this an amend session.
func (e *Engine) Begin(ctx context.Context, actorID, guildID string) (Result, error) {
	existing, err := e.store.Get(ctx, guildID)
	if err != nil {
		return Result{}, fmt.Errorf("load tenant %s: %w", guildID, err)
	}

	sess := e.sessions.Create(actorID, guildID)
	sess.Amend = existing != nil && existing.SetupComplete

	e.log.Info("setup session started",
		logx.String("actor", actorID),
		logx.String("guild", guildID),
		logx.Bool("amend", sess.Amend))

	return Result{
		State:  sess.State,
		Prompt: "Select the schedules to configure.",
	}, nil
}

// Handle applies one event to the actor's session.
func (e *Engine) Handle(ctx context.Context, actorID string, ev Event) (Result, error) {
	sess := e.sessions.Get(actorID)
	if sess == nil {
		return Result{Done: true}, ErrSessionExpired
	}

	if _, ok := ev.(Cancel); ok {
		e.sessions.Delete(actorID)
		e.log.Info("setup session cancelled", logx.String("actor", actorID))
		return Result{Done: true, Prompt: "Setup cancelled."}, nil
	}

	var (
		res Result
		err error
	)
	switch sess.State.Phase {
	case PhaseCategorySelection:
		res, err = e.handleCategorySelection(sess, ev)
	case PhaseChannelSelection:
		res, err = e.handleChannelSelection(ctx, sess, ev)
	case PhaseHostSelection:
		res, err = e.handleHostSelection(sess, ev)
	case PhaseConfirmation:
		res, err = e.handleConfirmation(ctx, sess, ev)
	default:
		err = ErrSessionExpired
	}

	if errors.Is(err, ErrSessionExpired) {
		e.sessions.Delete(actorID)
		e.log.Warn("setup event without required context",
			logx.String("actor", actorID),
			logx.String("state", sess.State.String()),
			logx.String("event", eventName(ev)))
	}
	return res, err
}

func (e *Engine) handleCategorySelection(sess *Session, ev Event) (Result, error) {
	sel, ok := ev.(SelectCategories)
	if !ok {
		return Result{Done: true}, ErrSessionExpired
	}
	if len(sel.Categories) == 0 {
		return e.stay(sess, "Pick at least one schedule."), &ValidationError{Reason: "no categories selected"}
	}

	seen := make(map[raid.Category]bool, len(sel.Categories))
	for _, c := range sel.Categories {
		if !raid.Valid(c) {
			return e.stay(sess, fmt.Sprintf("Unknown schedule %q.", c)), &ValidationError{Reason: "unknown category " + string(c)}
		}
		if seen[c] {
			return e.stay(sess, fmt.Sprintf("Schedule %s picked twice.", c)), &ValidationError{Reason: "duplicate category " + string(c)}
		}
		seen[c] = true
	}

	sess.Selected = append([]raid.Category(nil), sel.Categories...)
	sess.State = State{Phase: PhaseChannelSelection, Category: sess.Selected[0]}
	return Result{
		State:  sess.State,
		Prompt: channelPrompt(sess.State.Category),
	}, nil
}

func (e *Engine) handleChannelSelection(ctx context.Context, sess *Session, ev Event) (Result, error) {
	cat := sess.State.Category
	switch ev := ev.(type) {
	case CreateChannel:
		return e.autoCreateChannel(ctx, sess, cat)
	case PickChannel:
		sess.PendingChannel = ev.ChannelID
		return e.checkChannel(ctx, sess, cat, ev.ChannelID)
	case RetryChannel:
		if sess.PendingChannel == "" {
			return e.stay(sess, channelPrompt(cat)), nil
		}
		return e.checkChannel(ctx, sess, cat, sess.PendingChannel)
	default:
		return Result{Done: true}, ErrSessionExpired
	}
}

func (e *Engine) autoCreateChannel(ctx context.Context, sess *Session, cat raid.Category) (Result, error) {
	status, err := e.transport.AgentStatus(ctx, sess.GuildID)
	if err != nil {
		return e.retry(sess, "Could not check my permissions. Try again."), fmt.Errorf("agent status: %w", err)
	}
	if !status.CanManageChannels || status.RoleRank <= transport.MinRoleRank {
		return e.retry(sess,
			"I can't create channels here. Grant me Manage Channels and move my role above the bottom of the list, then retry."), nil
	}

	name := raid.DefaultChannelName(cat)
	channelID, err := e.transport.CreateChannel(ctx, sess.GuildID, name, transport.ChannelPolicy{
		ReadOnly: true,
		Topic:    raid.Name(cat) + " schedule, updated automatically.",
	})
	if err != nil {
		e.log.Warn("channel auto-creation failed",
			logx.String("guild", sess.GuildID),
			logx.String("category", string(cat)),
			logx.Err(err))
		return e.retry(sess, "Creating the channel failed. Try again."), nil
	}

	sess.Channels[cat] = channelID
	sess.PendingChannel = ""
	sess.State = State{Phase: PhaseHostSelection, Category: cat}
	return Result{
		State:  sess.State,
		Prompt: fmt.Sprintf("Created #%s. %s", name, hostPrompt(cat)),
		Delay:  e.advanceDelay,
	}, nil
}

// checkChannel verifies a chosen channel, auto-granting missing
// capabilities when the agent is able to.
func (e *Engine) checkChannel(ctx context.Context, sess *Session, cat raid.Category, channelID string) (Result, error) {
	caps, err := e.transport.CheckCapabilities(ctx, channelID)
	if err != nil {
		return e.retry(sess, "Could not inspect that channel. Try again."), fmt.Errorf("check capabilities: %w", err)
	}

	missing := caps.Missing()
	if len(missing) == 0 {
		return e.acceptChannel(sess, cat, channelID, 0), nil
	}

	status, err := e.transport.AgentStatus(ctx, sess.GuildID)
	if err != nil {
		return e.retry(sess, "Could not check my permissions. Try again."), fmt.Errorf("agent status: %w", err)
	}
	if status.CanManageChannels && status.RoleRank > transport.MinRoleRank {
		if err := e.transport.GrantCapabilities(ctx, channelID, missing); err == nil {
			e.log.Info("granted missing channel capabilities",
				logx.String("guild", sess.GuildID),
				logx.String("channel", channelID),
				logx.Any("capabilities", missing))
			return e.acceptChannel(sess, cat, channelID, e.advanceDelay), nil
		}
		e.log.Warn("capability auto-grant failed",
			logx.String("channel", channelID), logx.Any("missing", missing))
	}

	res := e.retry(sess, manualInstructions(missing))
	res.Missing = missing
	return res, nil
}

func (e *Engine) acceptChannel(sess *Session, cat raid.Category, channelID string, delay time.Duration) Result {
	sess.Channels[cat] = channelID
	sess.PendingChannel = ""
	sess.State = State{Phase: PhaseHostSelection, Category: cat}
	return Result{
		State:  sess.State,
		Prompt: "Channel set. " + hostPrompt(cat),
		Delay:  delay,
	}
}

func (e *Engine) handleHostSelection(sess *Session, ev Event) (Result, error) {
	sel, ok := ev.(SelectHosts)
	if !ok {
		return Result{Done: true}, ErrSessionExpired
	}
	cat := sess.State.Category
	if len(sel.Hosts) == 0 {
		return e.stay(sess, "Pick at least one host server."), &ValidationError{Reason: "no hosts selected"}
	}
	for _, h := range sel.Hosts {
		if !raid.ValidHost(h, cat) {
			return e.stay(sess, fmt.Sprintf("%s does not announce %s runs. Valid hosts: %s.",
					h, raid.Name(cat), strings.Join(raid.HostsFor(cat), ", "))),
				&ValidationError{Reason: "invalid host " + h}
		}
	}

	sess.Hosts[cat] = append([]string(nil), sel.Hosts...)
	if rest := sess.remaining(cat); len(rest) > 0 {
		sess.State = State{Phase: PhaseChannelSelection, Category: rest[0]}
		return Result{State: sess.State, Prompt: channelPrompt(rest[0])}, nil
	}

	sess.State = State{Phase: PhaseConfirmation}
	return Result{State: sess.State, Prompt: e.summary(sess)}, nil
}

func (e *Engine) handleConfirmation(ctx context.Context, sess *Session, ev Event) (Result, error) {
	if _, ok := ev.(Confirm); !ok {
		return Result{Done: true}, ErrSessionExpired
	}
	return e.commit(ctx, sess)
}

// commit merges the session into the tenant record field by field and
// writes it. On a storage failure the session stays live so the actor can
// retry the commit.
func (e *Engine) commit(ctx context.Context, sess *Session) (Result, error) {
	existing, err := e.store.Get(ctx, sess.GuildID)
	if err != nil {
		return e.retry(sess, "Saving failed. Try confirming again."), fmt.Errorf("load tenant %s: %w", sess.GuildID, err)
	}

	tenant := mergeTenant(existing, sess)
	if err := e.store.Upsert(ctx, tenant); err != nil {
		e.log.Error("setup commit failed",
			logx.String("guild", sess.GuildID), logx.Err(err))
		return e.retry(sess, "Saving failed. Try confirming again."), fmt.Errorf("upsert tenant %s: %w", sess.GuildID, err)
	}

	e.sessions.Delete(sess.ActorID)
	e.log.Info("setup committed",
		logx.String("guild", sess.GuildID),
		logx.Int("categories", len(sess.Selected)),
		logx.Bool("amend", sess.Amend))

	if e.forceSync != nil {
		e.forceSync(ctx, sess.GuildID)
	}
	return Result{Done: true, Prompt: "Setup complete. Your schedules will appear shortly."}, nil
}

// mergeTenant folds the session's choices into the stored record.
// Categories outside the session keep every stored field; reconfigured
// categories keep their color and overview message, and drop the
// published message state only when the channel actually moved.
func mergeTenant(existing *model.Tenant, sess *Session) *model.Tenant {
	tenant := existing.Clone()
	if tenant == nil {
		tenant = &model.Tenant{GuildID: sess.GuildID}
	}
	tenant.SetupComplete = true
	tenant.AutoUpdate = true

	for _, c := range sess.Selected {
		cc := tenant.Category(c)
		newChannel := sess.Channels[c]
		if cc.ChannelID != newChannel {
			cc.MessageID = ""
			cc.LastHash = 0
		}
		cc.ChannelID = newChannel
		cc.EnabledHosts = append([]string(nil), sess.Hosts[c]...)
	}
	return tenant
}

func (e *Engine) summary(sess *Session) string {
	var b strings.Builder
	b.WriteString("Review your configuration:\n")
	for _, c := range sess.Selected {
		fmt.Fprintf(&b, "- %s: channel %s, hosts %s\n",
			raid.Name(c), sess.Channels[c], strings.Join(sess.Hosts[c], ", "))
	}
	b.WriteString("Confirm to save, or cancel to discard.")
	return b.String()
}

// stay keeps the current state with a fresh prompt.
func (e *Engine) stay(sess *Session, prompt string) Result {
	return Result{State: sess.State, Prompt: prompt}
}

func (e *Engine) retry(sess *Session, prompt string) Result {
	return Result{State: sess.State, Prompt: prompt, Retry: true}
}

func channelPrompt(c raid.Category) string {
	return fmt.Sprintf("Pick a channel for %s, or have me create #%s.",
		raid.Name(c), raid.DefaultChannelName(c))
}

// hostPrompt asks for the host servers, listing the ones that actually
// announce runs for the category.
func hostPrompt(c raid.Category) string {
	return fmt.Sprintf("Now pick the host servers for %s: %s.",
		raid.Name(c), strings.Join(raid.HostsFor(c), ", "))
}

func manualInstructions(missing []transport.Capability) string {
	names := make([]string, len(missing))
	for i, c := range missing {
		names[i] = string(c)
	}
	return "I'm missing these permissions on that channel: " + strings.Join(names, ", ") +
		". Grant them in the channel settings, then retry."
}
