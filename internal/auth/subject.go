// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

// Package auth implements identity resolution for Atlasgate: the
// session token codec, the dual-credential resolver, the session
// renewal policy, API key rotation, and peppered password hashing.
//
// Identity comes from one of two credentials. A long-lived API key is
// checked against the credential store on every request and wins over
// a simultaneously presented token. A session token is a signed,
// self-contained claim set verified per request without a store
// round-trip; the embedded identity is trusted for the token's
// lifetime, so a deactivation takes effect at token expiry (bounded
// by the configured lifetime) rather than instantly on this path.
package auth

import (
	"errors"

	"github.com/atlasgate/atlasgate/internal/models"
)

// Resolution error taxonomy. The API boundary maps these onto HTTP
// status codes; nothing in this package retries.
var (
	// ErrUnauthenticated indicates no usable credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTokenExpired indicates a structurally valid session token past
	// its expiry. Distinguished from ErrTokenInvalid so callers can
	// silently redirect to login instead of showing a generic failure.
	ErrTokenExpired = errors.New("session token expired")

	// ErrTokenInvalid indicates a signature or structure failure.
	ErrTokenInvalid = errors.New("session token invalid")

	// ErrKeyInvalid indicates an API key that is unknown or belongs to
	// a deactivated principal. A presented-but-invalid key is a hard
	// failure, never a silent fall back to anonymous.
	ErrKeyInvalid = errors.New("api key invalid")

	// ErrForbidden indicates an authenticated caller failing a role or
	// grant check.
	ErrForbidden = errors.New("forbidden")

	// ErrServiceUnavailable indicates a transient credential store
	// failure. This is the only kind eligible for caller-level retry.
	ErrServiceUnavailable = errors.New("credential store unavailable")
)

// CredentialMethod records which credential resolved the subject.
type CredentialMethod string

const (
	// MethodNone means no credential was presented (anonymous).
	MethodNone CredentialMethod = "none"

	// MethodAPIKey means the API key path resolved the subject.
	MethodAPIKey CredentialMethod = "api_key"

	// MethodToken means the session token path resolved the subject.
	MethodToken CredentialMethod = "token"
)

// Subject is a resolved caller identity. Anonymous is a valid,
// low-privilege subject, not an error: downstream components treat it
// as "no identity" and public resources remain readable.
type Subject struct {
	// Anonymous is true when no credential was presented.
	Anonymous bool `json:"anonymous,omitempty"`

	// ID is the principal id. Empty for anonymous.
	ID string `json:"id,omitempty"`

	// Username is the principal's username. Empty for anonymous.
	Username string `json:"username,omitempty"`

	// Role is the principal's role. Empty for anonymous.
	Role models.Role `json:"role,omitempty"`

	// Method records the credential path that produced this subject.
	Method CredentialMethod `json:"method"`
}

// AnonymousSubject returns the shared no-identity subject value.
func AnonymousSubject() *Subject {
	return &Subject{Anonymous: true, Method: MethodNone}
}

// IsAdmin reports whether the subject holds the admin role.
func (s *Subject) IsAdmin() bool {
	return !s.Anonymous && s.Role == models.RoleAdmin
}

// Identity converts the subject to its caller-visible projection.
func (s *Subject) Identity() *models.Identity {
	return &models.Identity{
		ID:        s.ID,
		Username:  s.Username,
		Role:      s.Role,
		Anonymous: s.Anonymous,
	}
}

// CredentialBundle is the pair of optional credentials extracted from
// a request at the HTTP boundary. It is constructed once, outside this
// package, and passed by value so the resolver never touches
// transport-specific request objects.
type CredentialBundle struct {
	// APIKey from the X-API-Key header or api_key query parameter.
	APIKey string

	// Token from the session cookie or Authorization bearer header.
	Token string
}

// Empty reports whether no credential is present.
func (b CredentialBundle) Empty() bool {
	return b.APIKey == "" && b.Token == ""
}
