// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package models

import (
	"time"
)

// Role is the closed set of principal roles. Adding a role is a
// compile-time-visible change; the role gate matches exhaustively and
// has no default branch for unknown values.
type Role string

const (
	// RoleAdmin has full access, including grant and group management,
	// access-level changes, and key rotation for any principal.
	RoleAdmin Role = "admin"

	// RoleUser is the standard principal role. Read access is decided
	// by the access evaluator; writes are denied.
	RoleUser Role = "user"
)

// ParseRole converts a stored string to a Role. Unknown values are
// rejected rather than defaulted.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Principal is an account in the credential store.
//
// A deactivated principal (Active=false) resolves to no identity
// regardless of credential validity. The APIKey field holds the single
// currently active key; prior keys live in api_key_history and never
// authenticate again.
type Principal struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`

	// Username is the unique login name.
	Username string `json:"username"`

	// PasswordHash is the peppered bcrypt hash. Never serialized.
	PasswordHash string `json:"-"`

	// Role is the principal's role in the closed role set.
	Role Role `json:"role"`

	// Active indicates whether the principal may authenticate.
	Active bool `json:"active"`

	// APIKey is the currently active long-lived key. Never serialized;
	// it is returned exactly once, from rotation.
	APIKey string `json:"-"`

	// KeyCreatedAt is when the active key was installed.
	KeyCreatedAt time.Time `json:"key_created_at"`

	// LastLoginAt is the most recent successful password login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// CreatedAt is when the principal was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the principal was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKeyHistoryEntry records a retired API key. Rows are written in the
// same transaction that installs the replacement key, so at most one
// non-revoked key exists per principal at any observable moment.
type APIKeyHistoryEntry struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	Key         string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	RevokedBy   string     `json:"revoked_by,omitempty"`
}

// RotationResult is the outcome of an API key rotation: the new
// plaintext key (shown exactly once) and its creation timestamp.
type RotationResult struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}
