package setup

import (
	"fmt"

	"foraybot/internal/raid"
)

// Phase names one step of the configuration flow.
type Phase int

const (
	// PhaseCategorySelection is the initial step: pick 1..N categories.
	PhaseCategorySelection Phase = iota
	// PhaseChannelSelection picks or creates the channel for one category.
	PhaseChannelSelection
	// PhaseHostSelection picks the enabled host servers for one category.
	PhaseHostSelection
	// PhaseConfirmation shows the collected summary and awaits commit.
	PhaseConfirmation
)

func (p Phase) String() string {
	switch p {
	case PhaseCategorySelection:
		return "category-selection"
	case PhaseChannelSelection:
		return "channel-selection"
	case PhaseHostSelection:
		return "host-selection"
	case PhaseConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the session's position in the flow. Category is meaningful
// only for the per-category phases.
type State struct {
	Phase    Phase
	Category raid.Category
}

func (s State) String() string {
	if s.Phase == PhaseChannelSelection || s.Phase == PhaseHostSelection {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Category)
	}
	return s.Phase.String()
}

// Event is one actor input fed to the state machine. The concrete types
// below are the full event vocabulary.
type Event interface{ isEvent() }

// SelectCategories picks the ordered category list (CategorySelection).
type SelectCategories struct {
	Categories []raid.Category
}

// CreateChannel requests automatic channel creation (ChannelSelection).
type CreateChannel struct{}

// PickChannel selects an existing channel (ChannelSelection).
type PickChannel struct {
	ChannelID string
}

// RetryChannel re-enters the capability check after the actor fixed a
// prerequisite (ChannelSelection).
type RetryChannel struct{}

// SelectHosts picks the enabled sources for the current category
// (HostSelection).
type SelectHosts struct {
	Hosts []string
}

// Confirm commits the collected configuration (Confirmation).
type Confirm struct{}

// Cancel discards the session from any phase.
type Cancel struct{}

func (SelectCategories) isEvent() {}
func (CreateChannel) isEvent()    {}
func (PickChannel) isEvent()      {}
func (RetryChannel) isEvent()     {}
func (SelectHosts) isEvent()      {}
func (Confirm) isEvent()          {}
func (Cancel) isEvent()           {}

func eventName(ev Event) string {
	switch ev.(type) {
	case SelectCategories:
		return "select-categories"
	case CreateChannel:
		return "create-channel"
	case PickChannel:
		return "pick-channel"
	case RetryChannel:
		return "retry-channel"
	case SelectHosts:
		return "select-hosts"
	case Confirm:
		return "confirm"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("%T", ev)
	}
}
