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

	"github.com/atlasgate/atlasgate/internal/audit"
	"github.com/atlasgate/atlasgate/internal/models"
)

// resourceFromRoute parses the {kind}/{id} route segments. The path
// segment is the plural collection name; unknown kinds get a 404,
// matching how an unknown path would answer.
func resourceFromRoute(w http.ResponseWriter, r *http.Request) (models.ResourceKind, string, bool) {
	var kind models.ResourceKind
	switch chi.URLParam(r, "kind") {
	case "models":
		kind = models.KindModel
	case "zones":
		kind = models.KindZone
	default:
		respondNotFound(w)
		return "", "", false
	}
	return kind, chi.URLParam(r, "id"), true
}

// handleListGrants returns the full grant state of a resource. Admin
// only; grant existence reveals access structure.
func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subject := subjectFrom(r.Context())
	if err := s.gate.RequireAdmin(subject, r.URL.Path, r.Method); err != nil {
		respondMapped(w, err)
		return
	}
	kind, id, ok := resourceFromRoute(w, r)
	if !ok {
		return
	}

	grants, err := s.db.ListGrants(r.Context(), kind, id)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, grants, start)
}

// handleAddGrant adds a direct or group grant. Exactly one of
// principal_id and group_id must be set; the grant takes effect on the
// next access check because nothing caches grant state.
func (s *Server) handleAddGrant(w http.ResponseWriter, r *http.Request) {
	s.modifyGrant(w, r, true)
}

// handleRemoveGrant removes a direct or group grant. Revocation is
// likewise visible on the next check.
func (s *Server) handleRemoveGrant(w http.ResponseWriter, r *http.Request) {
	s.modifyGrant(w, r, false)
}

func (s *Server) modifyGrant(w http.ResponseWriter, r *http.Request, add bool) {
	start := time.Now()
	subject := subjectFrom(r.Context())
	if err := s.gate.RequireAdmin(subject, r.URL.Path, r.Method); err != nil {
		respondMapped(w, err)
		return
	}
	kind, id, ok := resourceFromRoute(w, r)
	if !ok {
		return
	}

	var req models.GrantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if (req.PrincipalID == "") == (req.GroupID == "") {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Exactly one of principal_id and group_id is required", nil)
		return
	}

	// Resource must exist; grants on phantom ids would silently never
	// take effect.
	name, err := s.db.GetResourceName(r.Context(), kind, id)
	if err != nil {
		respondMapped(w, err)
		return
	}

	action := audit.ActionGrantAdded
	if !add {
		action = audit.ActionGrantRemoved
	}
	details := map[string]interface{}{}
	if req.PrincipalID != "" {
		details["principal_id"] = req.PrincipalID
	} else {
		details["group_id"] = req.GroupID
	}

	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		var txErr error
		switch {
		case add && req.PrincipalID != "":
			txErr = s.db.AddDirectGrant(r.Context(), tx, &models.DirectGrant{
				Kind: kind, ResourceID: id, PrincipalID: req.PrincipalID, GrantedBy: subject.ID,
			})
		case add:
			txErr = s.db.AddGroupGrant(r.Context(), tx, &models.GroupGrant{
				Kind: kind, ResourceID: id, GroupID: req.GroupID, GrantedBy: subject.ID,
			})
		case req.PrincipalID != "":
			txErr = s.db.RemoveDirectGrant(r.Context(), tx, kind, id, req.PrincipalID)
		default:
			txErr = s.db.RemoveGroupGrant(r.Context(), tx, kind, id, req.GroupID)
		}
		if txErr != nil {
			return txErr
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  action,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: string(kind), ID: id, Name: name},
			Details: audit.Detail(details),
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}

	status := http.StatusOK
	if add {
		status = http.StatusCreated
	}
	respondSuccess(w, status, map[string]string{"resource_id": id}, start)
}
