// Package store persists tenant (guild) configuration. The engine only
// sees the GuildStore interface; the SQLite implementation below is the
// system of record.
package store

import (
	"context"
	"time"

	"foraybot/internal/model"
	"foraybot/internal/raid"
)

// Config configures the backing database.
type Config struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string
	// EncryptionKey seals channel/source/message columns at rest when set.
	// Must be 16, 24 or 32 bytes (AES-128/192/256).
	EncryptionKey string
	BusyTimeout   time.Duration
}

// GuildStore is the persistence API used by the setup flow and the sync
// scheduler.
type GuildStore interface {
	// Get returns a tenant's settings, or (nil, nil) when the guild has
	// never completed setup.
	Get(ctx context.Context, guildID string) (*model.Tenant, error)
	// Upsert writes the full tenant record (setup commit path).
	Upsert(ctx context.Context, t *model.Tenant) error
	// ListAutoUpdate returns every tenant with auto-update enabled.
	ListAutoUpdate(ctx context.Context) ([]*model.Tenant, error)
	// SetCategoryState records the published hash and message id for one
	// tenant/category. This is the only mutation the scheduler performs.
	SetCategoryState(ctx context.Context, guildID string, c raid.Category, hash uint64, messageID string) error
	Close() error
}
