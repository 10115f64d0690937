// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

// CredentialStore is the slice of the database the resolver needs.
type CredentialStore interface {
	FindPrincipalByAPIKey(ctx context.Context, key string) (*models.Principal, error)
}

// BreakerStore wraps a CredentialStore with a circuit breaker so a
// struggling database degrades into fast ErrServiceUnavailable
// failures instead of piling up blocked requests. A key that is simply
// unknown is a successful lookup, not a store failure, and never
// trips the breaker.
type BreakerStore struct {
	store   CredentialStore
	breaker *gobreaker.CircuitBreaker[*models.Principal]
}

// NewBreakerStore wraps store with breaker protection.
func NewBreakerStore(store CredentialStore) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        "credential-store",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 > counts.Requests
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, database.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Credential store breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}
	return &BreakerStore{
		store:   store,
		breaker: gobreaker.NewCircuitBreaker[*models.Principal](settings),
	}
}

// FindPrincipalByAPIKey looks up an active principal by API key
// through the breaker. An open breaker or an underlying store error
// both surface as ErrServiceUnavailable; database.ErrNotFound passes
// through untouched.
func (b *BreakerStore) FindPrincipalByAPIKey(ctx context.Context, key string) (*models.Principal, error) {
	p, err := b.breaker.Execute(func() (*models.Principal, error) {
		return b.store.FindPrincipalByAPIKey(ctx, key)
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrServiceUnavailable
		}
		logging.Error().Err(err).Msg("Credential store lookup failed")
		return nil, ErrServiceUnavailable
	}
	return p, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
