// Package config loads the bot's YAML configuration and watches it for
// changes. Files decode strictly: unknown keys are an error, and duration
// fields use Go duration syntax ("30s", "5m").
package config

import (
	"errors"
	"fmt"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Store     StoreConfig     `json:"store"`
	Sync      SyncConfig      `json:"sync"`
	Admission AdmissionConfig `json:"admission"`
	Upstream  UpstreamConfig  `json:"upstream"`
	Setup     SetupConfig     `json:"setup"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StoreConfig struct {
	Path          string `json:"path"`
	EncryptionKey string `json:"encryption_key"`
	BusyTimeout   string `json:"busy_timeout"`
}

type SyncConfig struct {
	Interval         string  `json:"interval"`
	Workers          int     `json:"workers"`
	WindowDays       int     `json:"window_days"`
	PublishPerSecond float64 `json:"publish_per_second"`
	PublishBurst     int     `json:"publish_burst"`
}

type AdmissionConfig struct {
	CommandCooldown     string `json:"command_cooldown"`
	InteractionCooldown string `json:"interaction_cooldown"`
	Window              string `json:"window"`
	MaxPerWindow        int    `json:"max_per_window"`
	SweepInterval       string `json:"sweep_interval"`
}

type UpstreamConfig struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
}

type SetupConfig struct {
	SessionTTL string `json:"session_ttl"`
}

// Validate checks the fields that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required")
	}
	if c.Sync.Workers < 0 {
		return errors.New("sync.workers must be >= 0")
	}
	if c.Admission.MaxPerWindow < 0 {
		return errors.New("admission.max_per_window must be >= 0")
	}

	durations := map[string]string{
		"store.busy_timeout":             c.Store.BusyTimeout,
		"sync.interval":                  c.Sync.Interval,
		"admission.command_cooldown":     c.Admission.CommandCooldown,
		"admission.interaction_cooldown": c.Admission.InteractionCooldown,
		"admission.window":               c.Admission.Window,
		"admission.sweep_interval":       c.Admission.SweepInterval,
		"upstream.timeout":               c.Upstream.Timeout,
		"setup.session_ttl":              c.Setup.SessionTTL,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}
