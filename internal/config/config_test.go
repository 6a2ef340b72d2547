// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Jellyfin.URL = "http://localhost:8096"
	cfg.Jellyfin.APIKey = "jf-api-key"
	cfg.Tracker.Users = []UserToken{
		{ID: "0b54a9e1-35a4-40f3-9c0f-2e1b9a9a0001", Token: "alice-token"},
	}
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing jellyfin url", func(c *Config) { c.Jellyfin.URL = "" }},
		{"bad jellyfin url", func(c *Config) { c.Jellyfin.URL = "not a url" }},
		{"missing api key", func(c *Config) { c.Jellyfin.APIKey = "" }},
		{"missing tracker url", func(c *Config) { c.Tracker.URL = "" }},
		{"bad user id", func(c *Config) { c.Tracker.Users[0].ID = "nope" }},
		{"empty user token", func(c *Config) { c.Tracker.Users[0].Token = "" }},
		{"zero workers", func(c *Config) { c.Dispatch.Workers = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"no event source", func(c *Config) {
			c.Jellyfin.RealtimeEnabled = false
			c.Jellyfin.SessionPollingEnabled = false
		}},
		{"polling interval too low", func(c *Config) {
			c.Jellyfin.SessionPollingEnabled = true
			c.Jellyfin.SessionPollingInterval = 100 * time.Millisecond
		}},
		{"duplicate user", func(c *Config) {
			c.Tracker.Users = append(c.Tracker.Users, c.Tracker.Users[0])
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestTrackerConfig_Token(t *testing.T) {
	tracker := TrackerConfig{Users: []UserToken{
		{ID: "0b54a9e1-35a4-40f3-9c0f-2e1b9a9a0001", Token: "alice-token"},
		{ID: "garbage", Token: "never-matched"},
	}}

	// Matching is by parsed UUID value, so case differences don't matter.
	id := uuid.MustParse("0B54A9E1-35A4-40F3-9C0F-2E1B9A9A0001")
	token, ok := tracker.Token(id)
	if !ok || token != "alice-token" {
		t.Errorf("Token() = %q, %v; want alice-token, true", token, ok)
	}

	if _, ok := tracker.Token(uuid.New()); ok {
		t.Error("unknown user must have no token")
	}
}

func TestLoad_FileAndEnvLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := strings.Join([]string{
		"jellyfin:",
		"  url: http://jellyfin:8096",
		"  api_key: from-file",
		"tracker:",
		"  url: http://tracker:7481",
		"  users:",
		"    - id: 0b54a9e1-35a4-40f3-9c0f-2e1b9a9a0001",
		"      token: alice-token",
		"dispatch:",
		"  workers: 2",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("JELLYFIN_API_KEY", "from-env")
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Jellyfin.URL != "http://jellyfin:8096" {
		t.Errorf("file value not applied: %s", cfg.Jellyfin.URL)
	}
	if cfg.Jellyfin.APIKey != "from-env" {
		t.Errorf("env must override file: %s", cfg.Jellyfin.APIKey)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("HTTP_PORT not applied: %d", cfg.Server.Port)
	}
	if cfg.Dispatch.Workers != 2 {
		t.Errorf("dispatch.workers not applied: %d", cfg.Dispatch.Workers)
	}
	if cfg.Dispatch.QueueSize != 256 {
		t.Errorf("default queue size lost: %d", cfg.Dispatch.QueueSize)
	}
	if len(cfg.Tracker.Users) != 1 || cfg.Tracker.Users[0].Token != "alice-token" {
		t.Errorf("users list not loaded: %+v", cfg.Tracker.Users)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("jellyfin:\n  url: http://jellyfin:8096\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("JELLYFIN_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected validation failure for missing api key")
	}
}
