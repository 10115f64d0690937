// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"errors"
	"net/http"

	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/database"
)

// respondMapped translates the auth/database error taxonomy into HTTP
// responses. Unknown errors become an opaque 500; internal detail
// never reaches the body.
func respondMapped(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required", nil)
	case errors.Is(err, auth.ErrTokenExpired):
		respondError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Session expired, please log in again", nil)
	case errors.Is(err, auth.ErrTokenInvalid):
		respondError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Session token is invalid", nil)
	case errors.Is(err, auth.ErrKeyInvalid):
		respondError(w, http.StatusUnauthorized, "KEY_INVALID", "API key is invalid", nil)
	case errors.Is(err, auth.ErrForbidden):
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient privileges", nil)
	case errors.Is(err, database.ErrNotFound):
		respondNotFound(w)
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", "Resource state changed concurrently, retry the operation", nil)
	case errors.Is(err, auth.ErrServiceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable, retry later", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// respondNotFound is the single not-found shape. Denied private reads
// use it too, so the response for "absent" and "hidden" is
// indistinguishable.
func respondNotFound(w http.ResponseWriter) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
}
