// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"strings"
	"testing"
)

const testPepper = "abcdefghijklmnopqrstuvwxyz012345"

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(testPepper)

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !h.Verify(hash, "correct horse battery staple") {
		t.Error("Verify rejected the original password")
	}
	if h.Verify(hash, "wrong password") {
		t.Error("Verify accepted a wrong password")
	}
}

func TestHasher_PepperMatters(t *testing.T) {
	h1 := NewHasher(testPepper)
	h2 := NewHasher("543210zyxwvutsrqponmlkjihgfedcba")

	hash, err := h1.Hash("secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h2.Verify(hash, "secret") {
		t.Error("hash verified under a different pepper")
	}
}

// bcrypt truncates input at 72 bytes; the SHA-256 pre-hash keeps long
// passwords fully significant.
func TestHasher_LongPasswords(t *testing.T) {
	h := NewHasher(testPepper)

	long := strings.Repeat("a", 100)
	hash, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h.Verify(hash, long+"b") {
		t.Error("trailing bytes past 72 were ignored")
	}
}

func TestGenerateAPIKey(t *testing.T) {
	k1, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	k2, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(k1, "agk_") {
		t.Errorf("key %q missing agk_ prefix", k1)
	}
	if k1 == k2 {
		t.Error("two generated keys are identical")
	}
	if len(k1) < 40 {
		t.Errorf("key too short: %d", len(k1))
	}
}
