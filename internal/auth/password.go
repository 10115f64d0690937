// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DummyHash is a throwaway bcrypt hash verified against when the
// username is unknown, so that path costs the same as a real
// comparison and timing does not reveal account existence.
const DummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Hasher produces and verifies peppered password hashes. The pepper is
// a server-side secret appended to the password before hashing, so a
// leaked database alone is not enough to mount an offline attack.
type Hasher struct {
	pepper string
	cost   int
}

// NewHasher creates a Hasher with the default bcrypt cost.
func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper, cost: bcrypt.DefaultCost}
}

// Hash returns the bcrypt hash of the peppered password. The password
// is pre-hashed with SHA-256 to sidestep bcrypt's 72-byte input limit.
func (h *Hasher) Hash(password string) (string, error) {
	digest := h.digest(password)
	hash, err := bcrypt.GenerateFromPassword(digest, h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether the password matches the stored hash.
// Comparison cost is constant with respect to the password.
func (h *Hasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), h.digest(password)) == nil
}

func (h *Hasher) digest(password string) []byte {
	sum := sha256.Sum256([]byte(password + h.pepper))
	return sum[:]
}
