// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

// Package audit provides the transactional audit trail for privileged
// mutations.
//
// Every privileged action (principal create/update, role change, key
// rotation, group and membership changes, grant changes, access-level
// changes) writes one immutable audit row in the SAME transaction as
// the mutation it documents. Record therefore takes an open *sql.Tx
// from the caller instead of opening its own unit of work: if the
// mutation rolls back, the audit row vanishes with it; if it commits,
// the row commits with it. Audit completeness is all-or-nothing.
//
// This is distinct from the security log channel in internal/logging,
// which is a best-effort monitoring stream for denials and failures.
package audit

import (
	"time"

	"github.com/goccy/go-json"
)

// ActionKind categorizes an audited action.
type ActionKind string

const (
	ActionPrincipalCreated     ActionKind = "principal.created"
	ActionPrincipalUpdated     ActionKind = "principal.updated"
	ActionPrincipalDeactivated ActionKind = "principal.deactivated"
	ActionRoleChanged          ActionKind = "principal.role_changed"
	ActionKeyRotated           ActionKind = "principal.key_rotated"

	ActionGroupCreated  ActionKind = "group.created"
	ActionGroupUpdated  ActionKind = "group.updated"
	ActionGroupDeleted  ActionKind = "group.deleted"
	ActionMemberAdded   ActionKind = "group.member_added"
	ActionMemberRemoved ActionKind = "group.member_removed"

	ActionGrantAdded         ActionKind = "grant.added"
	ActionGrantRemoved       ActionKind = "grant.removed"
	ActionResourceCreated    ActionKind = "resource.created"
	ActionAccessLevelChanged ActionKind = "resource.access_level_changed"
)

// Target identifies the object of an audited action.
type Target struct {
	// Kind of target (principal, group, model, zone).
	Kind string `json:"kind"`

	// ID of the target.
	ID string `json:"id"`

	// Name of the target at the time of the action.
	Name string `json:"name,omitempty"`
}

// Source describes where the request originated.
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Entry is one immutable audit row. Entries are only created as a side
// effect of a privileged mutation; nothing in this core updates or
// deletes them.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Action    ActionKind      `json:"action"`
	ActorID   string          `json:"actor_id"`
	Target    Target          `json:"target"`
	Details   json.RawMessage `json:"details,omitempty"`
	Source    Source          `json:"source"`
}

// Filter selects audit entries for listing.
type Filter struct {
	Action   ActionKind `json:"action,omitempty"`
	ActorID  string     `json:"actor_id,omitempty"`
	TargetID string     `json:"target_id,omitempty"`

	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Detail marshals a detail map into the entry blob. Marshal failures
// degrade to an empty blob rather than blocking the mutation.
func Detail(kv map[string]interface{}) json.RawMessage {
	if len(kv) == 0 {
		return nil
	}
	data, err := json.Marshal(kv)
	if err != nil {
		return nil
	}
	return data
}
