// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package models

import "time"

// Group is a named collection of principals. Group grants extend read
// access on a resource to every current member; membership changes
// take effect on the next access check because no membership cache
// exists anywhere in the process.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MemberCount is populated on list reads, not stored.
	MemberCount int `json:"member_count,omitempty"`
}

// Membership links a principal to a group.
type Membership struct {
	GroupID     string    `json:"group_id"`
	PrincipalID string    `json:"principal_id"`
	AddedBy     string    `json:"added_by,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}
