package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foraybot/pkg/logx"
)

const sampleYAML = `
logging:
  level: debug
  console: true
store:
  path: ./data/foraybot.db
  busy_timeout: 5s
sync:
  interval: 60s
  workers: 3
  window_days: 90
admission:
  command_cooldown: 3s
  interaction_cooldown: 1s
  window: 1m
  max_per_window: 30
upstream:
  base_url: https://feeds.example.com
  timeout: 30s
setup:
  session_ttl: 30m
`

func writeConfig(t *testing.T, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewManager(path, logx.Nop())
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Errorf("logging: %+v", cfg.Logging)
	}
	if cfg.Sync.Workers != 3 || cfg.Sync.WindowDays != 90 {
		t.Errorf("sync: %+v", cfg.Sync)
	}
	if d, _ := ParseDurationField("sync.interval", cfg.Sync.Interval); d != time.Minute {
		t.Errorf("interval parsed as %s", d)
	}
	if m.Get() != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML+"\nmystery_knob: 7\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestMissingRequiredFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "store:\n  path: ./db\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("config without upstream.base_url accepted")
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Sync.Interval = "sixty seconds"
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 42*time.Second)
	if err != nil || d != 42*time.Second {
		t.Fatalf("default not applied: %s %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "5m", time.Second)
	if err != nil || d != 5*time.Minute {
		t.Fatalf("explicit value lost: %s %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "later", time.Second); err == nil {
		t.Fatal("garbage duration accepted")
	}
}

func TestReloadSuppressedWhenUnchanged(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	sub := m.Subscribe(1)
	m.reload() // same content, same hash
	select {
	case <-sub:
		t.Fatal("unchanged reload was published")
	default:
	}

	changed := strings.Replace(sampleYAML, "workers: 3", "workers: 4", 1)
	if err := os.WriteFile(m.path, []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	select {
	case cfg := <-sub:
		if cfg.Sync.Workers != 4 {
			t.Fatalf("unexpected reloaded value: %d", cfg.Sync.Workers)
		}
	default:
		t.Fatal("changed reload not published")
	}
}
