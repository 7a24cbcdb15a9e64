// Package model holds the shared domain records passed between the store,
// the setup flow and the sync scheduler.
package model

import (
	"time"

	"foraybot/internal/raid"
)

// ColorUnset marks a per-category color override that has not been set.
const ColorUnset = -1

// CategoryConfig is one tenant's configuration for a single category.
// Either all of ChannelID/EnabledHosts are set (configured) or the whole
// struct is absent from the tenant (unconfigured).
type CategoryConfig struct {
	ChannelID    string
	EnabledHosts []string
	// Color overrides the category accent color; ColorUnset means default.
	Color int
	// MessageID is the last published schedule message ("" until first
	// publish, or after the message was deleted and not yet recreated).
	MessageID string
	// OverviewMessageID is the pinned overview message, kept across amends.
	OverviewMessageID string
	// LastHash is the last successfully published content hash (0 = unset).
	LastHash uint64
}

// Configured reports whether this category has a usable configuration.
func (c *CategoryConfig) Configured() bool {
	return c != nil && c.ChannelID != "" && len(c.EnabledHosts) > 0
}

// Tenant is one recipient organization's stored settings.
type Tenant struct {
	GuildID       string
	GuildName     string
	SetupComplete bool
	AutoUpdate    bool
	Categories    map[raid.Category]*CategoryConfig
}

// Category returns the config for c, creating an empty entry on demand so
// callers can fill it field by field.
func (t *Tenant) Category(c raid.Category) *CategoryConfig {
	if t.Categories == nil {
		t.Categories = make(map[raid.Category]*CategoryConfig)
	}
	cc := t.Categories[c]
	if cc == nil {
		cc = &CategoryConfig{Color: ColorUnset}
		t.Categories[c] = cc
	}
	return cc
}

// ConfiguredCategories returns the categories with a usable config, in
// registry order.
func (t *Tenant) ConfiguredCategories() []raid.Category {
	var out []raid.Category
	for _, c := range raid.All() {
		if t.Categories[c].Configured() {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy. The store hands out clones so concurrent
// sync units never share mutable state.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Categories = make(map[raid.Category]*CategoryConfig, len(t.Categories))
	for c, cc := range t.Categories {
		if cc == nil {
			continue
		}
		dup := *cc
		dup.EnabledHosts = append([]string(nil), cc.EnabledHosts...)
		cp.Categories[c] = &dup
	}
	return &cp
}

// Run is one scheduled occurrence announced by a host server. Runs live
// for a single synchronization pass and are never persisted.
type Run struct {
	ID      string
	Type    string
	Start   time.Time
	Created time.Time
	// DataCenter is the optional data-center label for the run.
	DataCenter string
	// ReferenceLink points at the original announcement, when known.
	ReferenceLink string
}
