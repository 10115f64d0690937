// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/atlasgate/atlasgate/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testPrincipal() *models.Principal {
	return &models.Principal{
		ID:       "11111111-1111-1111-1111-111111111111",
		Username: "surveyor",
		Role:     models.RoleUser,
	}
}

func TestTokenCodec_SignVerify(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)

	token, expiresAt, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if until := time.Until(expiresAt); until < 14*time.Minute || until > 15*time.Minute {
		t.Errorf("unexpected expiry %v", expiresAt)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Username != "surveyor" {
		t.Errorf("username = %q", claims.Username)
	}
	if claims.Role != models.RoleUser {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)

	issued := time.Now()
	codec.now = func() time.Time { return issued }
	token, _, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	codec.now = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify after expiry = %v, want ErrTokenExpired", err)
	}
}

// A token is already expired at the exact expiry instant; validity
// requires now strictly before exp.
func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)

	issued := time.Now().Truncate(time.Second)
	codec.now = func() time.Time { return issued }
	token, expiresAt, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	codec.now = func() time.Time { return expiresAt }
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify at exact expiry = %v, want ErrTokenExpired", err)
	}

	codec.now = func() time.Time { return expiresAt.Add(-time.Second) }
	if _, err := codec.Verify(token); err != nil {
		t.Errorf("Verify just before expiry = %v, want nil", err)
	}
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	signer := NewTokenCodec(testSecret, 15*time.Minute)
	verifier := NewTokenCodec("another-secret-another-secret-32", 15*time.Minute)

	token, _, err := signer.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify with wrong secret = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenCodec_Garbage(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestTokenCodec_UnknownRole(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)

	p := testPrincipal()
	p.Role = models.Role("superuser")
	token, _, err := codec.Sign(p)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify with unknown role = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenCodec_Remaining(t *testing.T) {
	codec := NewTokenCodec(testSecret, 15*time.Minute)

	issued := time.Now()
	codec.now = func() time.Time { return issued }
	token, _, err := codec.Sign(testPrincipal())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	codec.now = func() time.Time { return issued.Add(11 * time.Minute) }
	got := codec.Remaining(claims)
	if got < 3*time.Minute || got > 4*time.Minute {
		t.Errorf("Remaining = %v, want ~4m", got)
	}
}
