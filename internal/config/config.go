// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

// Package config loads and validates Atlasgate configuration.
//
// Configuration is resolved in three layers (Koanf v2): built-in
// defaults, then an optional YAML config file, then environment
// variables. The result is immutable after Load and passed by
// reference into the components that need it; nothing reads ambient
// environment state after startup.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// Timeout bounds request read/write and the enclosing request
	// context; it is the only cancellation source for resolution work.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// TrustedProxies lists proxies whose X-Forwarded-For is honored.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// DatabaseConfig holds DuckDB settings for the credential/grant store.
type DatabaseConfig struct {
	// Path is the database file path. ":memory:" for tests.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SecurityConfig holds authentication and secret material settings.
//
// SigningSecret and Pepper are process-wide secrets injected at
// construction time into the token codec and password hasher; they are
// never read ad hoc inside business logic so components stay testable
// with fixture configs.
type SecurityConfig struct {
	// SigningSecret signs session tokens (HMAC-SHA256). Minimum 32
	// characters; startup fails without it.
	SigningSecret string `koanf:"signing_secret"`

	// Pepper is a fixed-length shared secret appended to raw passwords
	// before bcrypt. Exactly 32 characters.
	Pepper string `koanf:"pepper"`

	// TokenLifetime is the session token validity window.
	TokenLifetime time.Duration `koanf:"token_lifetime"`

	// RenewalThreshold is the remaining-lifetime threshold under which
	// a verified token is silently reissued.
	RenewalThreshold time.Duration `koanf:"renewal_threshold"`

	// BootstrapAdminUsername seeds an admin principal on first start.
	BootstrapAdminUsername string `koanf:"bootstrap_admin_username"`

	// BootstrapAdminPassword is the seed admin's initial password.
	BootstrapAdminPassword string `koanf:"bootstrap_admin_password"`

	// RateLimitReqs is the per-IP request budget per window.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// LoginAttemptsPerMinute throttles password attempts per
	// username+IP pair.
	LoginAttemptsPerMinute int `koanf:"login_attempts_per_minute"`

	// SecureCookies marks session cookies Secure; disable only for
	// plain-HTTP development.
	SecureCookies bool `koanf:"secure_cookies"`
}

// APIConfig holds response shaping settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// pepperLength is the required Pepper length in characters.
const pepperLength = 32

// minSigningSecretLength is the minimum SigningSecret length.
const minSigningSecretLength = 32

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.Security.validate(); err != nil {
		return err
	}
	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api page sizes invalid: default=%d max=%d",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	return nil
}

func (s *SecurityConfig) validate() error {
	if len(s.SigningSecret) < minSigningSecretLength {
		return fmt.Errorf("security.signing_secret must be at least %d characters", minSigningSecretLength)
	}
	if len(s.Pepper) != pepperLength {
		return fmt.Errorf("security.pepper must be exactly %d characters", pepperLength)
	}
	if s.TokenLifetime <= 0 {
		return fmt.Errorf("security.token_lifetime must be positive")
	}
	if s.RenewalThreshold <= 0 || s.RenewalThreshold >= s.TokenLifetime {
		return fmt.Errorf("security.renewal_threshold must be positive and below token_lifetime")
	}
	if s.BootstrapAdminUsername != "" && len(s.BootstrapAdminPassword) < 12 {
		return fmt.Errorf("security.bootstrap_admin_password must be at least 12 characters")
	}
	return nil
}
