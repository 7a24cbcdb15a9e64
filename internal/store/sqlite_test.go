package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"foraybot/internal/model"
	"foraybot/internal/raid"
	"foraybot/pkg/logx"
)

func newTestStore(t *testing.T, key string) *SQLite {
	t.Helper()
	s, err := Open(Config{Path: ":memory:", EncryptionKey: key}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTenant() *model.Tenant {
	t := &model.Tenant{
		GuildID:       "g1",
		GuildName:     "Test Guild",
		SetupComplete: true,
		AutoUpdate:    true,
	}
	cc := t.Category(raid.BA)
	cc.ChannelID = "chan-ba"
	cc.EnabledHosts = []string{"ABBA+", "CAFE"}
	cc.MessageID = "msg-1"
	cc.LastHash = 42
	return t
}

func TestGetMissingGuild(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	got, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil tenant, got %+v", got)
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"", "0123456789abcdef0123456789abcdef"} {
		s := newTestStore(t, key)
		want := sampleTenant()
		if err := s.Upsert(context.Background(), want); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		got, err := s.Get(context.Background(), "g1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("tenant mismatch (key=%q) (-want +got):\n%s", key, diff)
		}
	}
}

func TestUpsertOverwritesFieldByField(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	first := sampleTenant()
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := sampleTenant()
	second.Category(raid.BA).EnabledHosts = []string{"CEM"}
	drs := second.Category(raid.DRS)
	drs.ChannelID = "chan-drs"
	drs.EnabledHosts = []string{"ABBA+"}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff([]string{"CEM"}, got.Categories[raid.BA].EnabledHosts); diff != "" {
		t.Errorf("BA hosts (-want +got):\n%s", diff)
	}
	if !got.Categories[raid.DRS].Configured() {
		t.Error("DRS category not persisted")
	}
}

func TestSetCategoryState(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	if err := s.Upsert(ctx, sampleTenant()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.SetCategoryState(ctx, "g1", raid.BA, 777, "msg-2"); err != nil {
		t.Fatalf("set state: %v", err)
	}

	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	cc := got.Categories[raid.BA]
	if cc.LastHash != 777 || cc.MessageID != "msg-2" {
		t.Fatalf("state not updated: hash=%d msg=%q", cc.LastHash, cc.MessageID)
	}
	// Other fields untouched.
	if cc.ChannelID != "chan-ba" {
		t.Fatalf("channel changed: %q", cc.ChannelID)
	}

	if err := s.SetCategoryState(ctx, "g1", raid.FT, 1, "m"); err == nil {
		t.Fatal("expected error for unconfigured category row")
	}
}

func TestListAutoUpdate(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	on := sampleTenant()
	if err := s.Upsert(ctx, on); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	off := sampleTenant()
	off.GuildID = "g2"
	off.AutoUpdate = false
	if err := s.Upsert(ctx, off); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tenants, err := s.ListAutoUpdate(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tenants) != 1 || tenants[0].GuildID != "g1" {
		t.Fatalf("unexpected tenants: %+v", tenants)
	}
}

func TestSealerRejectsBadKey(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Path: ":memory:", EncryptionKey: "short"}, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid key length")
	}
}
