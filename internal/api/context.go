// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"context"

	"github.com/atlasgate/atlasgate/internal/auth"
)

type contextKey int

const subjectContextKey contextKey = iota

// withSubject attaches the resolved subject to the request context.
func withSubject(ctx context.Context, s *auth.Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// subjectFrom returns the resolved subject. The auth middleware runs
// on every route, so a missing subject means a programming error; it
// degrades to anonymous rather than panicking.
func subjectFrom(ctx context.Context) *auth.Subject {
	if s, ok := ctx.Value(subjectContextKey).(*auth.Subject); ok {
		return s
	}
	return auth.AnonymousSubject()
}
