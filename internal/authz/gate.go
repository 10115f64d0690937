// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

// Package authz implements authorization: the role gate guarding
// privileged operations and the access evaluator deciding per-resource
// read visibility.
package authz

import (
	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

// Gate checks subjects against required roles. The role set is a
// closed enum, so matching is exhaustive: an unknown role value is a
// denial, never a skipped case.
type Gate struct {
	seclog *logging.SecurityLogger
}

// NewGate creates a Gate logging denials to the security channel.
func NewGate(seclog *logging.SecurityLogger) *Gate {
	return &Gate{seclog: seclog}
}

// Require returns nil when the subject holds one of the required
// roles. Anonymous subjects get auth.ErrUnauthenticated so the caller
// can prompt for login. An empty required set means any authenticated
// subject passes. Otherwise the subject's role must be a member of the
// required set; mismatch gets auth.ErrForbidden and the denial is
// written to the security audit channel with the required and actual
// roles.
func (g *Gate) Require(subject *auth.Subject, path, method string, required ...models.Role) error {
	if subject.Anonymous {
		return auth.ErrUnauthenticated
	}
	if len(required) == 0 {
		return nil
	}

	for _, role := range required {
		if g.holds(subject.Role, role) {
			return nil
		}
	}

	metrics.RoleDenialsTotal.WithLabelValues(path).Inc()
	g.seclog.LogRoleDenied(subject.ID, path, method, roleNames(required), string(subject.Role))
	return auth.ErrForbidden
}

// RequireAdmin is shorthand for the admin-only gate.
func (g *Gate) RequireAdmin(subject *auth.Subject, path, method string) error {
	return g.Require(subject, path, method, models.RoleAdmin)
}

// holds matches the subject's role against one required role. Matching
// is strict set membership, no role hierarchy: a gate that should
// admit admins names RoleAdmin in its required set. The switch stays
// exhaustive over the role enum so adding a role forces this site to
// be revisited, and an unknown required value never matches.
func (g *Gate) holds(actual, required models.Role) bool {
	switch required {
	case models.RoleAdmin:
		return actual == models.RoleAdmin
	case models.RoleUser:
		return actual == models.RoleUser
	default:
		return false
	}
}

func roleNames(roles []models.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}
