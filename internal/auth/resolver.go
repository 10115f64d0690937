// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"context"
	"errors"

	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
)

// Resolver turns a credential bundle into a Subject. Precedence is
// fixed: an API key, when present, is the caller's declared identity
// and is resolved against the store even if a token is also present.
// A presented key that fails resolution is a hard error; the resolver
// never downgrades a failed key to the token path or to anonymous,
// since that would let a revoked key holder keep working unnoticed.
type Resolver struct {
	store   CredentialStore
	codec   *TokenCodec
	renewal *RenewalPolicy
	seclog  *logging.SecurityLogger
}

// NewResolver creates a resolver. store is typically a BreakerStore.
func NewResolver(store CredentialStore, codec *TokenCodec, renewal *RenewalPolicy, seclog *logging.SecurityLogger) *Resolver {
	return &Resolver{store: store, codec: codec, renewal: renewal, seclog: seclog}
}

// Resolve resolves the bundle to a subject. remoteAddr is used only
// for security logging. A non-nil RenewedSession accompanies a
// token-resolved subject inside the renewal window.
func (r *Resolver) Resolve(ctx context.Context, bundle CredentialBundle, remoteAddr string) (*Subject, *RenewedSession, error) {
	if bundle.APIKey != "" {
		subject, err := r.resolveAPIKey(ctx, bundle.APIKey, remoteAddr)
		return subject, nil, err
	}
	if bundle.Token != "" {
		return r.resolveToken(bundle.Token, remoteAddr)
	}
	metrics.ResolutionsTotal.WithLabelValues(string(MethodNone), "anonymous").Inc()
	return AnonymousSubject(), nil, nil
}

func (r *Resolver) resolveAPIKey(ctx context.Context, key, remoteAddr string) (*Subject, error) {
	p, err := r.store.FindPrincipalByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.ResolutionsTotal.WithLabelValues(string(MethodAPIKey), "invalid").Inc()
			r.seclog.LogAuthFailure("api_key", remoteAddr, "", "key unknown or principal inactive")
			return nil, ErrKeyInvalid
		}
		metrics.ResolutionsTotal.WithLabelValues(string(MethodAPIKey), "unavailable").Inc()
		return nil, ErrServiceUnavailable
	}

	metrics.ResolutionsTotal.WithLabelValues(string(MethodAPIKey), "ok").Inc()
	return &Subject{
		ID:       p.ID,
		Username: p.Username,
		Role:     p.Role,
		Method:   MethodAPIKey,
	}, nil
}

func (r *Resolver) resolveToken(token, remoteAddr string) (*Subject, *RenewedSession, error) {
	claims, err := r.codec.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			metrics.ResolutionsTotal.WithLabelValues(string(MethodToken), "expired").Inc()
			r.seclog.LogAuthFailure("token", remoteAddr, "", "token expired")
		} else {
			metrics.ResolutionsTotal.WithLabelValues(string(MethodToken), "invalid").Inc()
			r.seclog.LogAuthFailure("token", remoteAddr, "", "token invalid")
		}
		return nil, nil, err
	}

	metrics.ResolutionsTotal.WithLabelValues(string(MethodToken), "ok").Inc()
	subject := &Subject{
		ID:       claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		Method:   MethodToken,
	}
	return subject, r.renewal.Renew(claims), nil
}
