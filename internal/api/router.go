// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

// Package api exposes the HTTP surface: login and session endpoints,
// catalog reads filtered by the access evaluator, and the admin
// surface for principals, groups, grants and the audit log.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlasgate/atlasgate/internal/audit"
	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/authz"
	"github.com/atlasgate/atlasgate/internal/config"
	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/models"
)

// Server wires the HTTP handlers to the auth and authz components.
type Server struct {
	cfg       *config.Config
	db        *database.DB
	recorder  *audit.Recorder
	resolver  *auth.Resolver
	codec     *auth.TokenCodec
	hasher    *auth.Hasher
	keys      *auth.KeyManager
	limiter   *auth.LoginLimiter
	gate      *authz.Gate
	evaluator *authz.Evaluator
	seclog    *logging.SecurityLogger
}

// NewServer creates the HTTP server wiring.
func NewServer(
	cfg *config.Config,
	db *database.DB,
	recorder *audit.Recorder,
	resolver *auth.Resolver,
	codec *auth.TokenCodec,
	hasher *auth.Hasher,
	keys *auth.KeyManager,
	gate *authz.Gate,
	evaluator *authz.Evaluator,
	seclog *logging.SecurityLogger,
) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		recorder:  recorder,
		resolver:  resolver,
		codec:     codec,
		hasher:    hasher,
		keys:      keys,
		limiter:   auth.NewLoginLimiter(cfg.Security.LoginAttemptsPerMinute),
		gate:      gate,
		evaluator: evaluator,
		seclog:    seclog,
	}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.Timeout))
	r.Use(requestLogger)
	r.Use(instrumentation)
	r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))

	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Unauthenticated infrastructure endpoints.
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authentication)

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/validate", s.handleValidate)
		r.Get("/auth/me", s.handleMe)
		r.Post("/auth/keys/rotate", s.handleRotateKey)
		r.Get("/auth/keys/history", s.handleKeyHistory)

		r.Get("/models", s.handleListModels)
		r.Get("/models/{id}", s.handleGetModel)
		r.Post("/models", s.handleCreateModel)
		r.Put("/models/{id}/access", s.handleSetAccessLevel(models.KindModel))
		r.Get("/zones", s.handleListZones)
		r.Get("/zones/{id}", s.handleGetZone)
		r.Post("/zones", s.handleCreateZone)
		r.Put("/zones/{id}/access", s.handleSetAccessLevel(models.KindZone))

		r.Get("/{kind}/{id}/grants", s.handleListGrants)
		r.Post("/{kind}/{id}/grants", s.handleAddGrant)
		r.Delete("/{kind}/{id}/grants", s.handleRemoveGrant)

		r.Post("/principals", s.handleCreatePrincipal)
		r.Delete("/principals/{id}", s.handleDeactivatePrincipal)
		r.Put("/principals/{id}/role", s.handleSetRole)

		r.Post("/groups", s.handleCreateGroup)
		r.Get("/groups", s.handleListGroups)
		r.Get("/groups/{id}", s.handleGetGroup)
		r.Put("/groups/{id}", s.handleRenameGroup)
		r.Delete("/groups/{id}", s.handleDeleteGroup)
		r.Post("/groups/{id}/members", s.handleAddMember)
		r.Delete("/groups/{id}/members/{principalID}", s.handleRemoveMember)

		r.Get("/audit", s.handleAuditQuery)
	})

	return r
}
