// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
)

// extractBundle pulls both optional credentials out of the request.
// This is the only place transport detail touches credential handling;
// the resolver sees only the bundle.
func extractBundle(r *http.Request) auth.CredentialBundle {
	var b auth.CredentialBundle

	b.APIKey = r.Header.Get("X-API-Key")
	if b.APIKey == "" {
		b.APIKey = r.URL.Query().Get("api_key")
	}

	if c, err := r.Cookie(auth.SessionCookieName); err == nil {
		b.Token = c.Value
	}
	if b.Token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			b.Token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	return b
}

// authentication resolves the caller on every request. Anonymous
// passes through; per-route gates decide what anonymous may do. A
// presented-but-bad credential fails the request here.
func (s *Server) authentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, renewed, err := s.resolver.Resolve(r.Context(), extractBundle(r), clientIP(r))
		if err != nil {
			respondMapped(w, err)
			return
		}
		if renewed != nil {
			renewed.Apply(w)
		}
		next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), subject)))
	})
}

// instrumentation records per-route request counts and latency.
func instrumentation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", clientIP(r)).
			Msg("Request")
	})
}
