// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

// Package config loads and validates Trackbridge configuration via Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Config is the root configuration structure.
type Config struct {
	Jellyfin JellyfinConfig `koanf:"jellyfin"`
	Tracker  TrackerConfig  `koanf:"tracker"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// JellyfinConfig configures the inbound Jellyfin connection.
type JellyfinConfig struct {
	URL    string `koanf:"url" validate:"required,url"`
	APIKey string `koanf:"api_key" validate:"required"`

	// RealtimeEnabled subscribes to the Jellyfin WebSocket for session
	// updates. This is the primary event source.
	RealtimeEnabled bool `koanf:"realtime_enabled"`

	// SessionPollingEnabled polls /Sessions as a fallback for environments
	// where the WebSocket is unreliable.
	SessionPollingEnabled  bool          `koanf:"session_polling_enabled"`
	SessionPollingInterval time.Duration `koanf:"session_polling_interval"`
}

// TrackerConfig configures the outbound MediaTracker connection.
type TrackerConfig struct {
	// URL is the MediaTracker base URL, e.g. http://localhost:7481.
	URL string `koanf:"url" validate:"required,url"`

	// Users maps Jellyfin user ids to MediaTracker API tokens. A user
	// without a token here is never synced.
	Users []UserToken `koanf:"users" validate:"dive"`
}

// UserToken links one Jellyfin user to a MediaTracker access token.
type UserToken struct {
	ID    string `koanf:"id" validate:"required,uuid"`
	Token string `koanf:"token" validate:"required"`
}

// DispatchConfig tunes the outbound sync pipeline.
type DispatchConfig struct {
	// Workers is the number of concurrent dispatch workers draining the
	// sync queue.
	Workers int `koanf:"workers" validate:"min=1,max=64"`

	// QueueSize is the sync queue buffer; when full, event handling backs
	// up onto the queue rather than dropping work.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// RatePerSecond caps outbound MediaTracker calls. Sized generously so
	// it only matters when something upstream misbehaves.
	RatePerSecond float64 `koanf:"rate_per_second"`

	// Timeout bounds a single outbound HTTP call.
	Timeout time.Duration `koanf:"timeout"`
}

// ServerConfig configures the status HTTP server (health + metrics).
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// layered first, then overridden by file and environment.
func defaultConfig() *Config {
	return &Config{
		Jellyfin: JellyfinConfig{
			URL:                    "",
			APIKey:                 "",
			RealtimeEnabled:        true,
			SessionPollingEnabled:  false,
			SessionPollingInterval: 30 * time.Second,
		},
		Tracker: TrackerConfig{
			URL:   "http://localhost:7481",
			Users: nil,
		},
		Dispatch: DispatchConfig{
			Workers:       4,
			QueueSize:     256,
			RatePerSecond: 25,
			Timeout:       30 * time.Second,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    7482,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks that required configuration is present and well-formed.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !c.Jellyfin.RealtimeEnabled && !c.Jellyfin.SessionPollingEnabled {
		return fmt.Errorf("at least one of jellyfin.realtime_enabled or jellyfin.session_polling_enabled must be set")
	}
	if c.Jellyfin.SessionPollingEnabled && c.Jellyfin.SessionPollingInterval < time.Second {
		return fmt.Errorf("jellyfin.session_polling_interval must be at least 1s")
	}

	seen := make(map[string]struct{}, len(c.Tracker.Users))
	for _, u := range c.Tracker.Users {
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("duplicate tracker user id %s", u.ID)
		}
		seen[u.ID] = struct{}{}
	}

	return nil
}

// Token returns the MediaTracker token configured for the given Jellyfin
// user, matching ids by parsed UUID value the way the original plugin did.
func (t *TrackerConfig) Token(userID uuid.UUID) (string, bool) {
	for _, u := range t.Users {
		id, err := uuid.Parse(u.ID)
		if err != nil {
			continue
		}
		if id == userID {
			return u.Token, true
		}
	}
	return "", false
}
