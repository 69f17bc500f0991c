// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package config resolves the application configuration once at startup.
//
// Integration credentials are first-class typed state: a provider with
// missing credentials is "not configured", which the read API reports as a
// degraded-but-successful response rather than an error.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	GitHub   GitHubConfig   `koanf:"github"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Sync     SyncConfig     `koanf:"sync"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// GitHubConfig holds the GitHub integration credentials and sync targets.
type GitHubConfig struct {
	Token string `koanf:"token"`
	Login string `koanf:"login"`
	// Repos is the owner/name list the orchestrator syncs commits from.
	Repos []string `koanf:"repos"`
}

// Configured reports whether the GitHub integration has credentials.
func (c GitHubConfig) Configured() bool {
	return c.Token != ""
}

// SpotifyConfig holds the Spotify OAuth credentials.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RefreshToken string `koanf:"refresh_token"`
}

// Configured reports whether the Spotify integration has a full credential
// set. A partial set still counts as not configured; the token cache
// reports which piece is missing.
func (c SpotifyConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// SyncConfig holds orchestrator settings.
type SyncConfig struct {
	// Interval is the in-process scheduler cadence. Zero disables the
	// scheduler (trigger-only mode for serverless deployments).
	Interval time.Duration `koanf:"interval"`
	// Lookback bounds how far back a sync fetches provider history.
	Lookback time.Duration `koanf:"lookback"`
	// Timeout caps the wall-clock runtime of one orchestrator run.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// RecentLimit is how many recently-played tracks one sync requests.
	RecentLimit int `koanf:"recent_limit" validate:"gte=1,lte=50"`
}

// SecurityConfig holds the sync-trigger trust settings.
type SecurityConfig struct {
	// CronSecret authorizes machine-triggered syncs via X-Cron-Secret.
	CronSecret string `koanf:"cron_secret"`
	// JWTSecret signs admin session tokens.
	JWTSecret string `koanf:"jwt_secret"`
	// AdminUsername/AdminPasswordHash authorize the manual login path.
	// The hash is bcrypt; plaintext passwords are never configured.
	AdminUsername     string        `koanf:"admin_username"`
	AdminPasswordHash string        `koanf:"admin_password_hash"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// AdminLoginEnabled reports whether the manual admin path is usable.
func (c SecurityConfig) AdminLoginEnabled() bool {
	return c.AdminUsername != "" && c.AdminPasswordHash != "" && c.JWTSecret != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, repo := range c.GitHub.Repos {
		if !validRepoSlug(repo) {
			return fmt.Errorf("invalid configuration: github repo %q is not owner/name", repo)
		}
	}

	if c.Security.AdminUsername != "" && c.Security.JWTSecret == "" {
		return fmt.Errorf("invalid configuration: admin login requires security.jwt_secret")
	}

	return nil
}

// validRepoSlug reports whether s has the owner/name shape.
func validRepoSlug(s string) bool {
	var slash int
	for i, r := range s {
		if r == '/' {
			slash++
			if i == 0 || i == len(s)-1 {
				return false
			}
		}
	}
	return slash == 1
}
