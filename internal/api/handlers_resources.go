// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlasgate/atlasgate/internal/audit"
	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/models"
)

// viewerFrom converts the resolved subject into the list-query filter.
func viewerFrom(r *http.Request) database.Viewer {
	subject := subjectFrom(r.Context())
	return database.Viewer{
		Anonymous:   subject.Anonymous,
		Admin:       subject.IsAdmin(),
		PrincipalID: subject.ID,
	}
}

// handleListModels lists the models visible to the caller. Visibility
// filtering happens in the query itself; invisible resources are
// absent from the page, not blanked out.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := s.pageParams(r)

	items, err := s.db.ListModels(r.Context(), viewerFrom(r), limit, offset)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, items, start)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := s.pageParams(r)

	items, err := s.db.ListZones(r.Context(), viewerFrom(r), limit, offset)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, items, start)
}

// handleGetModel returns one model if the caller may read it. A denied
// private read answers 404, byte-identical to a genuinely absent id,
// so probing cannot enumerate the private catalog.
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	if !s.authorizeRead(w, r, models.KindModel, id) {
		return
	}

	m, err := s.db.GetModel(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, m, start)
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	if !s.authorizeRead(w, r, models.KindZone, id) {
		return
	}

	z, err := s.db.GetZone(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, z, start)
}

// authorizeRead runs the access evaluator for a single-resource read.
// A false return means the response has been written. Denials and
// missing resources produce the same 404.
func (s *Server) authorizeRead(w http.ResponseWriter, r *http.Request, kind models.ResourceKind, id string) bool {
	decision, err := s.evaluator.CanRead(r.Context(), subjectFrom(r.Context()), kind, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(w)
		} else {
			respondMapped(w, err)
		}
		return false
	}
	if !decision.Allowed {
		respondNotFound(w)
		return false
	}
	return true
}

// handleCreateModel registers a model. Admin only.
func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subject := subjectFrom(r.Context())
	if err := s.gate.RequireAdmin(subject, r.URL.Path, r.Method); err != nil {
		respondMapped(w, err)
		return
	}

	var req models.CreateModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	level, _ := models.ParseAccessLevel(req.AccessLevel)
	m := &models.Model{
		ID:          uuid.New().String(),
		Name:        req.Name,
		AccessLevel: level,
		Format:      req.Format,
		CreatedBy:   subject.ID,
	}

	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.CreateModel(r.Context(), tx, m); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionResourceCreated,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: string(models.KindModel), ID: m.ID, Name: m.Name},
			Details: audit.Detail(map[string]interface{}{"access_level": req.AccessLevel, "format": req.Format}),
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, m, start)
}

// handleCreateZone registers a zone. Admin only.
func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subject := subjectFrom(r.Context())
	if err := s.gate.RequireAdmin(subject, r.URL.Path, r.Method); err != nil {
		respondMapped(w, err)
		return
	}

	var req models.CreateZoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	level, _ := models.ParseAccessLevel(req.AccessLevel)
	z := &models.Zone{
		ID:          uuid.New().String(),
		Name:        req.Name,
		AccessLevel: level,
		MinLon:      req.MinLon,
		MinLat:      req.MinLat,
		MaxLon:      req.MaxLon,
		MaxLat:      req.MaxLat,
		CreatedBy:   subject.ID,
	}

	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.CreateZone(r.Context(), tx, z); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionResourceCreated,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: string(models.KindZone), ID: z.ID, Name: z.Name},
			Details: audit.Detail(map[string]interface{}{"access_level": req.AccessLevel}),
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, z, start)
}

// handleSetAccessLevel flips a resource between public and private.
// Admin only; the change and its audit record commit together.
func (s *Server) handleSetAccessLevel(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		subject := subjectFrom(r.Context())
		if err := s.gate.RequireAdmin(subject, r.URL.Path, r.Method); err != nil {
			respondMapped(w, err)
			return
		}

		var req models.AccessLevelRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		level, _ := models.ParseAccessLevel(req.AccessLevel)
		id := chi.URLParam(r, "id")

		name, err := s.db.GetResourceName(r.Context(), kind, id)
		if err != nil {
			respondMapped(w, err)
			return
		}

		err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
			if err := s.db.SetAccessLevel(r.Context(), tx, kind, id, level); err != nil {
				return err
			}
			return s.recorder.Record(r.Context(), tx, &audit.Entry{
				Action:  audit.ActionAccessLevelChanged,
				ActorID: subject.ID,
				Target:  audit.Target{Kind: string(kind), ID: id, Name: name},
				Details: audit.Detail(map[string]interface{}{"access_level": req.AccessLevel}),
				Source:  sourceFromRequest(r),
			})
		})
		if err != nil {
			respondMapped(w, err)
			return
		}
		respondSuccess(w, http.StatusOK, map[string]string{
			"id":           id,
			"access_level": req.AccessLevel,
		}, start)
	}
}
