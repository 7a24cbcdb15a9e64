package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"foraybot/internal/model"
	"foraybot/internal/raid"
	"foraybot/internal/store/migrations"
	"foraybot/pkg/logx"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements GuildStore backed by a SQLite database.
type SQLite struct {
	db   *sql.DB
	seal *sealer
	log  logx.Logger
}

// Open opens (or creates) the database at cfg.Path and runs pending
// migrations.
func Open(cfg Config, log logx.Logger) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	seal, err := newSealer(cfg.EncryptionKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, seal: seal, log: log}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, guildID string) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT guild_id, guild_name, setup_complete, auto_update
		 FROM guilds WHERE guild_id = ?`, guildID)

	t := &model.Tenant{Categories: map[raid.Category]*model.CategoryConfig{}}
	var setupComplete, autoUpdate int
	err := row.Scan(&t.GuildID, &t.GuildName, &setupComplete, &autoUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query guild: %w", err)
	}
	t.SetupComplete = setupComplete != 0
	t.AutoUpdate = autoUpdate != 0

	if err := s.loadCategories(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLite) loadCategories(ctx context.Context, t *model.Tenant) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, channel_id, enabled_hosts, color, message_id, overview_message_id, last_hash
		 FROM guild_categories WHERE guild_id = ?`, t.GuildID)
	if err != nil {
		return fmt.Errorf("query guild categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cat, channelID, hostsRaw, messageID, overviewID, hashRaw string
		var color int
		if err := rows.Scan(&cat, &channelID, &hostsRaw, &color, &messageID, &overviewID, &hashRaw); err != nil {
			return fmt.Errorf("scan guild category: %w", err)
		}

		cc := &model.CategoryConfig{Color: color}
		if cc.ChannelID, err = s.seal.open(channelID); err != nil {
			return fmt.Errorf("guild %s/%s channel: %w", t.GuildID, cat, err)
		}
		if cc.MessageID, err = s.seal.open(messageID); err != nil {
			return fmt.Errorf("guild %s/%s message: %w", t.GuildID, cat, err)
		}
		if cc.OverviewMessageID, err = s.seal.open(overviewID); err != nil {
			return fmt.Errorf("guild %s/%s overview: %w", t.GuildID, cat, err)
		}
		hostsJSON, err := s.seal.open(hostsRaw)
		if err != nil {
			return fmt.Errorf("guild %s/%s hosts: %w", t.GuildID, cat, err)
		}
		if hostsJSON != "" {
			if err := json.Unmarshal([]byte(hostsJSON), &cc.EnabledHosts); err != nil {
				return fmt.Errorf("guild %s/%s hosts json: %w", t.GuildID, cat, err)
			}
		}
		cc.LastHash, err = strconv.ParseUint(hashRaw, 10, 64)
		if err != nil {
			return fmt.Errorf("guild %s/%s hash: %w", t.GuildID, cat, err)
		}

		t.Categories[raid.Category(cat)] = cc
	}
	return rows.Err()
}

func (s *SQLite) Upsert(ctx context.Context, t *model.Tenant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO guilds (guild_id, guild_name, setup_complete, auto_update, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   guild_name = excluded.guild_name,
		   setup_complete = excluded.setup_complete,
		   auto_update = excluded.auto_update,
		   updated_at = excluded.updated_at`,
		t.GuildID, t.GuildName, boolToInt(t.SetupComplete), boolToInt(t.AutoUpdate), now)
	if err != nil {
		return fmt.Errorf("upsert guild: %w", err)
	}

	for _, c := range raid.All() {
		cc := t.Categories[c]
		if cc == nil {
			continue
		}
		hostsJSON, err := json.Marshal(cc.EnabledHosts)
		if err != nil {
			return fmt.Errorf("marshal hosts: %w", err)
		}

		channelID, err := s.seal.seal(cc.ChannelID)
		if err != nil {
			return err
		}
		hosts, err := s.seal.seal(string(hostsJSON))
		if err != nil {
			return err
		}
		messageID, err := s.seal.seal(cc.MessageID)
		if err != nil {
			return err
		}
		overviewID, err := s.seal.seal(cc.OverviewMessageID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO guild_categories
			   (guild_id, category, channel_id, enabled_hosts, color, message_id, overview_message_id, last_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(guild_id, category) DO UPDATE SET
			   channel_id = excluded.channel_id,
			   enabled_hosts = excluded.enabled_hosts,
			   color = excluded.color,
			   message_id = excluded.message_id,
			   overview_message_id = excluded.overview_message_id,
			   last_hash = excluded.last_hash`,
			t.GuildID, string(c), channelID, hosts, cc.Color, messageID, overviewID,
			strconv.FormatUint(cc.LastHash, 10))
		if err != nil {
			return fmt.Errorf("upsert guild category %s: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *SQLite) ListAutoUpdate(ctx context.Context) ([]*model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id FROM guilds WHERE auto_update = 1 AND setup_complete = 1 ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("query auto-update guilds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan guild id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tenants := make([]*model.Tenant, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			tenants = append(tenants, t)
		}
	}
	return tenants, nil
}

func (s *SQLite) SetCategoryState(ctx context.Context, guildID string, c raid.Category, hash uint64, messageID string) error {
	sealed, err := s.seal.seal(messageID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE guild_categories SET last_hash = ?, message_id = ?
		 WHERE guild_id = ? AND category = ?`,
		strconv.FormatUint(hash, 10), sealed, guildID, string(c))
	if err != nil {
		return fmt.Errorf("update category state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category state %s/%s: no such row", guildID, c)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
