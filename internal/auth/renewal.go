// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"net/http"
	"time"

	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "atlasgate_session"

// RenewedSession is a freshly signed token to be attached to the
// response of the request that triggered renewal.
type RenewedSession struct {
	Token     string
	ExpiresAt time.Time
	Secure    bool
}

// Apply sets the session cookie on the response.
func (r *RenewedSession) Apply(w http.ResponseWriter) {
	http.SetCookie(w, SessionCookie(r.Token, r.ExpiresAt, r.Secure))
}

// SessionCookie builds the session cookie with the standard
// attributes. An expiry in the past clears the cookie.
func SessionCookie(token string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RenewalPolicy decides when a session token is re-issued. A token
// within threshold of expiry gets a fresh token minted from its own
// claims, sliding the session for active users without a store
// round-trip. Renewal is best effort: a signing failure is logged and
// the request proceeds on the still-valid original token.
type RenewalPolicy struct {
	codec     *TokenCodec
	threshold time.Duration
	secure    bool
}

// NewRenewalPolicy creates a policy. threshold is the remaining
// lifetime below which renewal kicks in.
func NewRenewalPolicy(codec *TokenCodec, threshold time.Duration, secure bool) *RenewalPolicy {
	return &RenewalPolicy{codec: codec, threshold: threshold, secure: secure}
}

// Renew returns a fresh session when the claims are inside the renewal
// window, nil otherwise.
func (p *RenewalPolicy) Renew(claims *Claims) *RenewedSession {
	remaining := p.codec.Remaining(claims)
	if remaining <= 0 || remaining >= p.threshold {
		return nil
	}

	token, expiresAt, err := p.codec.Sign(&models.Principal{
		ID:       claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
	})
	if err != nil {
		metrics.TokenRenewalsTotal.WithLabelValues("error").Inc()
		logging.Warn().Err(err).
			Str("principal_id", claims.Subject).
			Msg("Session renewal failed, continuing on original token")
		return nil
	}

	metrics.TokenRenewalsTotal.WithLabelValues("renewed").Inc()
	logging.Debug().
		Str("principal_id", claims.Subject).
		Time("expires_at", expiresAt).
		Msg("Session token renewed")
	return &RenewedSession{Token: token, ExpiresAt: expiresAt, Secure: p.secure}
}
