// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package models

import "time"

// ResourceKind identifies a protected resource kind in the catalog.
type ResourceKind string

const (
	// KindModel is a 3D model asset.
	KindModel ResourceKind = "model"

	// KindZone is a geographic zone.
	KindZone ResourceKind = "zone"
)

// String returns the string representation of the kind.
func (k ResourceKind) String() string {
	return string(k)
}

// AccessLevel is a resource's visibility. Public short-circuits every
// grant check: any caller, including anonymous, may read a public
// resource.
type AccessLevel string

const (
	AccessPublic  AccessLevel = "public"
	AccessPrivate AccessLevel = "private"
)

// ParseAccessLevel converts a stored or submitted string to an
// AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	switch AccessLevel(s) {
	case AccessPublic:
		return AccessPublic, true
	case AccessPrivate:
		return AccessPrivate, true
	default:
		return "", false
	}
}

// Model is a 3D model asset in the catalog.
type Model struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	AccessLevel AccessLevel `json:"access_level"`

	// Format is the source format tag (gltf, obj, ifc, citygml).
	Format string `json:"format,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone is a geographic zone in the catalog. The bounding box is stored
// in WGS84 degrees.
type Zone struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	AccessLevel AccessLevel `json:"access_level"`

	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DirectGrant gives one principal read access to one resource,
// independent of group membership.
type DirectGrant struct {
	Kind        ResourceKind `json:"kind"`
	ResourceID  string       `json:"resource_id"`
	PrincipalID string       `json:"principal_id"`
	GrantedBy   string       `json:"granted_by,omitempty"`
	GrantedAt   time.Time    `json:"granted_at"`
}

// GroupGrant gives every current member of a group read access to one
// resource.
type GroupGrant struct {
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resource_id"`
	GroupID    string       `json:"group_id"`
	GrantedBy  string       `json:"granted_by,omitempty"`
	GrantedAt  time.Time    `json:"granted_at"`
}

// ResourceGrants is the full grant state of one resource, returned by
// the grant administration endpoints.
type ResourceGrants struct {
	Kind        ResourceKind  `json:"kind"`
	ResourceID  string        `json:"resource_id"`
	AccessLevel AccessLevel   `json:"access_level"`
	Direct      []DirectGrant `json:"direct"`
	Groups      []GroupGrant  `json:"groups"`
}
