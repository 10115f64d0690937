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
	"github.com/atlasgate/atlasgate/internal/models"
)

// requireAdmin gates a handler body; a false return means the
// response has been written.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := s.gate.RequireAdmin(subjectFrom(r.Context()), r.URL.Path, r.Method); err != nil {
		respondMapped(w, err)
		return false
	}
	return true
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())

	var req models.GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g := &models.Group{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedBy: subject.ID,
	}
	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.CreateGroup(r.Context(), tx, g); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionGroupCreated,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "group", ID: g.ID, Name: g.Name},
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, g, start)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}

	groups, err := s.db.ListGroups(r.Context())
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, groups, start)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")

	g, err := s.db.GetGroup(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}
	members, err := s.db.ListMembers(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"group":   g,
		"members": members,
	}, start)
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())
	id := chi.URLParam(r, "id")

	var req models.GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.RenameGroup(r.Context(), tx, id, req.Name); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionGroupUpdated,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "group", ID: id, Name: req.Name},
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"id": id, "name": req.Name}, start)
}

// handleDeleteGroup deletes a group. Memberships and the group's
// grants go with it in the same transaction, so access derived from
// the group ends atomically with the deletion.
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())
	id := chi.URLParam(r, "id")

	g, err := s.db.GetGroup(r.Context(), id)
	if err != nil {
		respondMapped(w, err)
		return
	}

	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.DeleteGroup(r.Context(), tx, id); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionGroupDeleted,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "group", ID: id, Name: g.Name},
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"id": id}, start)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())
	groupID := chi.URLParam(r, "id")

	var req models.MemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Both sides must exist so a typo cannot create a dangling row.
	if _, err := s.db.GetGroup(r.Context(), groupID); err != nil {
		respondMapped(w, err)
		return
	}
	if _, err := s.db.GetPrincipal(r.Context(), req.PrincipalID); err != nil {
		respondMapped(w, err)
		return
	}

	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.AddMember(r.Context(), tx, groupID, req.PrincipalID, subject.ID); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionMemberAdded,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "group", ID: groupID},
			Details: audit.Detail(map[string]interface{}{"principal_id": req.PrincipalID}),
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]string{
		"group_id":     groupID,
		"principal_id": req.PrincipalID,
	}, start)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.requireAdmin(w, r) {
		return
	}
	subject := subjectFrom(r.Context())
	groupID := chi.URLParam(r, "id")
	principalID := chi.URLParam(r, "principalID")

	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.RemoveMember(r.Context(), tx, groupID, principalID); err != nil {
			return err
		}
		return s.recorder.Record(r.Context(), tx, &audit.Entry{
			Action:  audit.ActionMemberRemoved,
			ActorID: subject.ID,
			Target:  audit.Target{Kind: "group", ID: groupID},
			Details: audit.Detail(map[string]interface{}{"principal_id": principalID}),
			Source:  sourceFromRequest(r),
		})
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{
		"group_id":     groupID,
		"principal_id": principalID,
	}, start)
}
