// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlasgate/atlasgate/internal/audit"
	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/models"
)

// handleCreatePrincipal provisions an account. Admin only. The initial
// API key is minted here and returned exactly once; afterwards it only
// appears through rotation.
func (s *Server) handleCreatePrincipal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())

	var req models.CreatePrincipalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, _ := models.ParseRole(req.Role)

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	key, err := auth.GenerateAPIKey()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	p := &models.Principal{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		APIKey:       key,
	}

	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.CreatePrincipal(r.Context(), tx, p); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionPrincipalCreated,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "principal", ID: p.ID, Name: p.Username},
			Details: audit.Detail(map[string]interface{}{"role": req.Role}),
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"principal": p,
		"api_key":   key,
	}, start)
}

// handleDeactivatePrincipal disables an account. Its API key stops
// resolving immediately; an outstanding session token keeps working
// until expiry, bounded by the token lifetime.
func (s *Server) handleDeactivatePrincipal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())
	id := chi.URLParam(r, "id")

	if id == subject.ID {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Cannot deactivate your own account", nil)
		return
	}

	target, err := s.db.GetPrincipal(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}

	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.SetPrincipalActive(r.Context(), tx, id, false); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionPrincipalDeactivated,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "principal", ID: id, Name: target.Username},
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"id": id}, start)
}

// handleSetRole changes a principal's role within the closed role set.
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())
	id := chi.URLParam(r, "id")

	var req models.SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, _ := models.ParseRole(req.Role)

	target, err := s.db.GetPrincipal(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}

	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.SetPrincipalRole(r.Context(), tx, id, role); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionRoleChanged,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "principal", ID: id, Name: target.Username},
			Details: audit.Detail(map[string]interface{}{
				"from": string(target.Role),
				"to":   req.Role,
			}),
			Source: sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"id": id, "role": req.Role}, start)
}
