// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package api

import (
	"net/http"
	"time"

	"github.com/atlasgate/atlasgate/internal/audit"
)

// handleAuditQuery lists audit entries newest first. Admin only.
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}

	limit, offset := s.pageParams(r)
	filter := audit.Filter{
		Action:   audit.ActionKind(r.URL.Query().Get("action")),
		ActorID:  r.URL.Query().Get("actor_id"),
		TargetID: r.URL.Query().Get("target_id"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "since must be RFC3339", nil)
			return
		}
		filter.Since = &t
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "until must be RFC3339", nil)
			return
		}
		filter.Until = &t
	}

	entries, err := s.recorder.Query(r.Context(), filter)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, entries, start)
}
