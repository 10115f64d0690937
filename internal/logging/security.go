// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for the monitoring
// channel: authentication outcomes, authorization denials, credential
// rotation. These events never carry secret material.
type SecurityEvent struct {
	// Event is the type of event (e.g., "login_failed", "role_denied").
	Event string
	// PrincipalID is the acting principal's identifier (if known).
	PrincipalID string
	// Username is the acting principal's username (if known).
	Username string
	// Method is the credential method involved (api_key, token, password).
	Method string
	// Path is the request path, if the event is request-scoped.
	Path string
	// HTTPMethod is the request method, if the event is request-scoped.
	HTTPMethod string
	// IPAddress is the client's IP address.
	IPAddress string
	// UserAgent is the client's user agent (truncated on output).
	UserAgent string
	// Success indicates whether the operation succeeded.
	Success bool
	// Error is the failure reason, if any.
	Error string
	// Details contains additional sanitized key/value context.
	Details map[string]string
}

// SecurityLogger is the security-audit channel. It writes structured
// monitoring events through the global logger under component=security
// and sanitizes values before they reach the log stream.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "security").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security").Logger(),
	}
}

// LogEvent writes a security event with sanitized fields.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}

	if event.PrincipalID != "" {
		e = e.Str("principal_id", sanitizeField(event.PrincipalID))
	}
	if event.Username != "" {
		e = e.Str("username", sanitizeField(event.Username))
	}
	if event.Method != "" {
		e = e.Str("method", event.Method)
	}
	if event.Path != "" {
		e = e.Str("path", sanitizeField(event.Path))
	}
	if event.HTTPMethod != "" {
		e = e.Str("http_method", event.HTTPMethod)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", truncateString(sanitizeField(event.UserAgent), 100))
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", sanitizeField(event.Error))
	}

	for k, v := range event.Details {
		e = e.Str(k, sanitizeField(v))
	}

	e.Msg("")
}

// LogLoginSuccess logs a successful password login.
func (l *SecurityLogger) LogLoginSuccess(principalID, username, ip, userAgent string) {
	l.LogEvent(&SecurityEvent{
		Event:       "login_success",
		PrincipalID: principalID,
		Username:    username,
		Method:      "password",
		IPAddress:   ip,
		UserAgent:   userAgent,
		Success:     true,
	})
}

// LogLoginFailure logs a failed password login.
func (l *SecurityLogger) LogLoginFailure(username, ip, userAgent, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_failed",
		Username:  username,
		Method:    "password",
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   false,
		Error:     reason,
	})
}

// LogAuthFailure logs a failed credential resolution (bad API key,
// invalid or expired token).
func (l *SecurityLogger) LogAuthFailure(method, ip, userAgent, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "auth_failed",
		Method:    method,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   false,
		Error:     reason,
	})
}

// LogRoleDenied logs a role-gate rejection. Required and actual roles
// are included so operators can spot privilege probing.
func (l *SecurityLogger) LogRoleDenied(principalID, path, httpMethod string, required []string, actual string) {
	l.LogEvent(&SecurityEvent{
		Event:       "role_denied",
		PrincipalID: principalID,
		Path:        path,
		HTTPMethod:  httpMethod,
		Success:     false,
		Details: map[string]string{
			"required_roles": strings.Join(required, ","),
			"actual_role":    actual,
		},
	})
}

// LogKeyRotated logs an API key rotation.
func (l *SecurityLogger) LogKeyRotated(principalID, rotatedBy, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:       "key_rotated",
		PrincipalID: principalID,
		IPAddress:   ip,
		Success:     true,
		Details: map[string]string{
			"rotated_by": rotatedBy,
		},
	})
}

// LogStoreFailure logs an internal credential/grant store failure with
// full detail. The HTTP response for the same failure carries none.
func (l *SecurityLogger) LogStoreFailure(operation string, err error) {
	l.logger.Error().
		Str("event", "store_failure").
		Str("operation", operation).
		Err(err).
		Msg("")
}

// sanitizeField strips control characters so attacker-controlled values
// cannot forge log lines.
func sanitizeField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteRune('�')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateString shortens s to max runes.
func truncateString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
