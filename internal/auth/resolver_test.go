// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/models"
)

// mockStore is a hand-rolled CredentialStore for resolver tests.
type mockStore struct {
	mu         sync.Mutex
	principals map[string]*models.Principal
	err        error
	calls      int
}

func newMockStore() *mockStore {
	return &mockStore{principals: make(map[string]*models.Principal)}
}

func (m *mockStore) FindPrincipalByAPIKey(_ context.Context, key string) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.principals[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func newTestResolver(store CredentialStore) (*Resolver, *TokenCodec) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)
	renewal := NewRenewalPolicy(codec, 5*time.Minute, false)
	return NewResolver(store, codec, renewal, logging.NewSecurityLogger()), codec
}

func TestResolver_NoCredentials(t *testing.T) {
	resolver, _ := newTestResolver(newMockStore())

	subject, renewed, err := resolver.Resolve(context.Background(), CredentialBundle{}, "10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !subject.Anonymous {
		t.Error("expected anonymous subject")
	}
	if subject.Method != MethodNone {
		t.Errorf("method = %q, want none", subject.Method)
	}
	if renewed != nil {
		t.Error("unexpected renewal for anonymous")
	}
}

func TestResolver_APIKey(t *testing.T) {
	store := newMockStore()
	store.principals["agk_valid"] = &models.Principal{
		ID:       "p-1",
		Username: "surveyor",
		Role:     models.RoleUser,
		Active:   true,
	}
	resolver, _ := newTestResolver(store)

	subject, _, err := resolver.Resolve(context.Background(), CredentialBundle{APIKey: "agk_valid"}, "10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if subject.Anonymous || subject.ID != "p-1" || subject.Method != MethodAPIKey {
		t.Errorf("unexpected subject %+v", subject)
	}
}

// An invalid API key is a hard failure even when a valid token rides
// alongside: the declared identity failed, so no fallback.
func TestResolver_InvalidKeyNoFallback(t *testing.T) {
	store := newMockStore()
	resolver, codec := newTestResolver(store)

	token, _, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	bundle := CredentialBundle{APIKey: "agk_bogus", Token: token}
	subject, _, err := resolver.Resolve(context.Background(), bundle, "10.0.0.1")
	if !errors.Is(err, ErrKeyInvalid) {
		t.Fatalf("Resolve = %v, want ErrKeyInvalid", err)
	}
	if subject != nil {
		t.Errorf("subject = %+v, want nil", subject)
	}
}

// API key wins when both credentials are valid; the token is not even
// inspected.
func TestResolver_KeyPrecedence(t *testing.T) {
	store := newMockStore()
	store.principals["agk_valid"] = &models.Principal{
		ID:       "key-principal",
		Username: "keyuser",
		Role:     models.RoleAdmin,
		Active:   true,
	}
	resolver, _ := newTestResolver(store)

	bundle := CredentialBundle{APIKey: "agk_valid", Token: "garbage-token-never-parsed"}
	subject, _, err := resolver.Resolve(context.Background(), bundle, "10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if subject.ID != "key-principal" || subject.Method != MethodAPIKey {
		t.Errorf("unexpected subject %+v", subject)
	}
}

func TestResolver_StoreUnavailable(t *testing.T) {
	store := newMockStore()
	store.err = ErrServiceUnavailable
	resolver, _ := newTestResolver(store)

	_, _, err := resolver.Resolve(context.Background(), CredentialBundle{APIKey: "agk_any"}, "10.0.0.1")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Resolve = %v, want ErrServiceUnavailable", err)
	}
}

func TestResolver_Token(t *testing.T) {
	resolver, codec := newTestResolver(newMockStore())

	token, _, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	subject, renewed, err := resolver.Resolve(context.Background(), CredentialBundle{Token: token}, "10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if subject.Method != MethodToken || subject.Username != "surveyor" {
		t.Errorf("unexpected subject %+v", subject)
	}
	// Full lifetime remains; no renewal.
	if renewed != nil {
		t.Error("unexpected renewal for fresh token")
	}
}

func TestResolver_TokenExpired(t *testing.T) {
	store := newMockStore()
	codec := NewTokenCodec(testSecret, 15*time.Minute)
	issued := time.Now()
	codec.now = func() time.Time { return issued.Add(-16 * time.Minute) }
	token, _, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	codec.now = time.Now

	renewal := NewRenewalPolicy(codec, 5*time.Minute, false)
	resolver := NewResolver(store, codec, renewal, logging.NewSecurityLogger())

	_, _, err = resolver.Resolve(context.Background(), CredentialBundle{Token: token}, "10.0.0.1")
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Resolve = %v, want ErrTokenExpired", err)
	}
	if store.calls != 0 {
		t.Error("token path must not hit the credential store")
	}
}

func TestResolver_TokenInvalid(t *testing.T) {
	resolver, _ := newTestResolver(newMockStore())

	_, _, err := resolver.Resolve(context.Background(), CredentialBundle{Token: "mangled"}, "10.0.0.1")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Resolve = %v, want ErrTokenInvalid", err)
	}
}

// Inside the renewal window the resolver hands back a fresh token for
// the same identity.
func TestResolver_RenewalWindow(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)
	issued := time.Now()
	codec.now = func() time.Time { return issued.Add(-11 * time.Minute) }
	token, _, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	codec.now = time.Now

	renewal := NewRenewalPolicy(codec, 5*time.Minute, false)
	resolver := NewResolver(newMockStore(), codec, renewal, logging.NewSecurityLogger())

	subject, renewed, err := resolver.Resolve(context.Background(), CredentialBundle{Token: token}, "10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if renewed == nil {
		t.Fatal("expected renewal inside threshold")
	}
	if renewed.Token == token {
		t.Error("renewed token must differ")
	}

	claims, err := codec.Verify(renewed.Token)
	if err != nil {
		t.Fatalf("renewed token invalid: %v", err)
	}
	if claims.Subject != subject.ID || claims.Role != subject.Role {
		t.Errorf("renewed identity mismatch: %+v vs %+v", claims, subject)
	}
}
