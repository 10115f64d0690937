// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles password attempts per username+IP pair so a
// single source cannot brute-force one account while legitimate users
// on other addresses keep logging in.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*loginEntry
	limit    rate.Limit
	burst    int

	lastSweep time.Time
}

type loginEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a limiter allowing attemptsPerMinute per key
// with a matching burst.
func NewLoginLimiter(attemptsPerMinute int) *LoginLimiter {
	return &LoginLimiter{
		limiters:  make(map[string]*loginEntry),
		limit:     rate.Limit(float64(attemptsPerMinute) / 60.0),
		burst:     attemptsPerMinute,
		lastSweep: time.Now(),
	}
}

// Allow reports whether an attempt for the username from the address
// may proceed.
func (l *LoginLimiter) Allow(username, ip string) bool {
	key := username + "|" + ip
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > 10*time.Minute {
		l.sweep(now)
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &loginEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// sweep drops entries idle long enough to have fully refilled.
// Caller holds mu.
func (l *LoginLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > 15*time.Minute {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}
