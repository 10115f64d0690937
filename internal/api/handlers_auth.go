// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

// handleLogin exchanges username+password for a session token. The
// response for a wrong password and an unknown username is identical,
// and both paths run the password hash so timing does not reveal
// account existence.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ip := clientIP(r)
	if !s.limiter.Allow(req.Username, ip) {
		metrics.LoginsTotal.WithLabelValues("throttled").Inc()
		s.seclog.LogLoginFailure(req.Username, ip, r.UserAgent(), "rate limited")
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts, slow down", nil)
		return
	}

	p, err := s.db.FindPrincipalByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			respondMapped(w, auth.ErrServiceUnavailable)
			return
		}
		// Burn a hash anyway so unknown usernames cost the same.
		s.hasher.Verify(auth.DummyHash, req.Password)
		s.loginFailed(w, req.Username, ip, r.UserAgent(), "unknown username")
		return
	}

	if !p.Active || !s.hasher.Verify(p.PasswordHash, req.Password) {
		s.loginFailed(w, req.Username, ip, r.UserAgent(), "bad password or inactive")
		return
	}

	token, expiresAt, err := s.codec.Sign(p)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	if err := s.db.UpdateLastLogin(r.Context(), p.ID, time.Now()); err != nil {
		logging.Warn().Err(err).Str("principal_id", p.ID).Msg("Failed to record last login")
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.seclog.LogLoginSuccess(p.ID, p.Username, ip, r.UserAgent())

	http.SetCookie(w, auth.SessionCookie(token, expiresAt, s.cfg.Security.SecureCookies))
	respondSuccess(w, http.StatusOK, &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: &models.Identity{ID: p.ID, Username: p.Username, Role: p.Role},
	}, start)
}

func (s *Server) loginFailed(w http.ResponseWriter, username, ip, userAgent, reason string) {
	metrics.LoginsTotal.WithLabelValues("failure").Inc()
	s.seclog.LogLoginFailure(username, ip, userAgent, reason)
	respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
}

// handleLogout clears the session cookie. Tokens are stateless, so an
// already-issued token stays valid until expiry; logout only removes
// it from the browser.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.SessionCookie("", time.Unix(0, 0), s.cfg.Security.SecureCookies))
	respondSuccess(w, http.StatusOK, map[string]string{"message": "logged out"}, time.Now())
}

// handleValidate reports whether the presented credential resolved.
// Anonymous is a 401 here: the endpoint exists for clients to probe
// their own credential.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	subject := subjectFrom(r.Context())
	if subject.Anonymous {
		respondMapped(w, auth.ErrUnauthenticated)
		return
	}
	respondSuccess(w, http.StatusOK, subject.Identity(), time.Now())
}

// handleMe returns the caller's identity, anonymous included.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, subjectFrom(r.Context()).Identity(), time.Now())
}

// handleRotateKey rotates an API key. Principals rotate their own;
// rotating another account's key requires admin, checked against the
// store rather than token claims so a role change applies immediately.
func (s *Server) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subject := subjectFrom(r.Context())
	if subject.Anonymous {
		respondMapped(w, auth.ErrUnauthenticated)
		return
	}

	var req models.RotateKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	targetID := req.PrincipalID
	if targetID == "" {
		targetID = subject.ID
	}

	if targetID != subject.ID {
		isAdmin, err := s.db.IsAdmin(r.Context(), subject.ID)
		if err != nil {
			respondMapped(w, auth.ErrServiceUnavailable)
			return
		}
		if !isAdmin {
			s.seclog.LogRoleDenied(subject.ID, r.URL.Path, r.Method, []string{string(models.RoleAdmin)}, string(subject.Role))
			respondMapped(w, auth.ErrForbidden)
			return
		}
	}

	result, err := s.keys.Rotate(r.Context(), targetID, subject.ID, sourceFromRequest(r))
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, result, start)
}

// handleKeyHistory lists the caller's retired keys. Key material is
// never echoed; only timestamps and the revoking principal.
func (s *Server) handleKeyHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subject := subjectFrom(r.Context())
	if subject.Anonymous {
		respondMapped(w, auth.ErrUnauthenticated)
		return
	}

	history, err := s.db.GetKeyHistory(r.Context(), subject.ID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, history, start)
}
