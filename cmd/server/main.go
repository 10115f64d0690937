// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

// Command server runs the Atlasgate API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/atlasgate/atlasgate/internal/api"
	"github.com/atlasgate/atlasgate/internal/audit"
	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/authz"
	"github.com/atlasgate/atlasgate/internal/config"
	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/models"
	"github.com/atlasgate/atlasgate/internal/supervisor"
	"github.com/atlasgate/atlasgate/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Starting Atlasgate")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	recorder, err := audit.NewRecorder(db.Conn())
	if err != nil {
		return fmt.Errorf("initializing audit recorder: %w", err)
	}

	seclog := logging.NewSecurityLogger()
	hasher := auth.NewHasher(cfg.Security.Pepper)

	if err := bootstrapAdmin(context.Background(), cfg, db, hasher); err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}

	codec := auth.NewTokenCodec(cfg.Security.SigningSecret, cfg.Security.TokenLifetime)
	renewal := auth.NewRenewalPolicy(codec, cfg.Security.RenewalThreshold, cfg.Security.SecureCookies)
	store := auth.NewBreakerStore(db)
	resolver := auth.NewResolver(store, codec, renewal, seclog)
	keys := auth.NewKeyManager(db, recorder, seclog)
	gate := authz.NewGate(seclog)
	evaluator := authz.NewEvaluator(db)

	server := api.NewServer(cfg, db, recorder, resolver, codec, hasher, keys, gate, evaluator, seclog)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddAPIService(services.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

// bootstrapAdmin seeds the configured admin account when no principal
// with that username exists yet, so a fresh install is reachable. The
// initial API key is written to the log exactly once.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, db *database.DB, hasher *auth.Hasher) error {
	username := cfg.Security.BootstrapAdminUsername
	if username == "" || cfg.Security.BootstrapAdminPassword == "" {
		return nil
	}

	_, err := db.FindPrincipalByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(cfg.Security.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}

	p := &models.Principal{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Active:       true,
		APIKey:       key,
	}
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.CreatePrincipal(ctx, tx, p)
	}); err != nil {
		return err
	}

	logging.Info().
		Str("username", username).
		Str("api_key", key).
		Msg("Bootstrap admin created; rotate this key after first login")
	return nil
}
