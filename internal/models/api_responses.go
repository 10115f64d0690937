// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package models

import "time"

// APIResponse is the standardized envelope used by every HTTP endpoint.
//
// Status is "success" or "error". Data carries the payload on success;
// Error carries the failure on error. Metadata is always present.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request. Code is a stable machine-usable
// identifier; Message is human-readable and never contains internal
// detail for 5xx responses.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LoginRequest is the password login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=1,max=512"`
}

// LoginResponse returns the issued session token. The same token is
// also set as an HttpOnly cookie.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Principal *Identity `json:"principal"`
}

// Identity is the caller-visible projection of a resolved principal.
type Identity struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// RotateKeyRequest selects whose key to rotate. Empty PrincipalID means
// the caller's own; rotating another principal's key requires admin.
type RotateKeyRequest struct {
	PrincipalID string `json:"principal_id,omitempty" validate:"omitempty,uuid4"`
}

// AccessLevelRequest changes a resource's visibility.
type AccessLevelRequest struct {
	AccessLevel string `json:"access_level" validate:"required,oneof=public private"`
}

// GrantRequest adds a grant to a resource. Exactly one of PrincipalID
// and GroupID must be set.
type GrantRequest struct {
	PrincipalID string `json:"principal_id,omitempty" validate:"omitempty,uuid4"`
	GroupID     string `json:"group_id,omitempty" validate:"omitempty,uuid4"`
}

// GroupRequest creates or renames a group.
type GroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

// MemberRequest adds a principal to a group.
type MemberRequest struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid4"`
}

// CreatePrincipalRequest provisions a new account.
type CreatePrincipalRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=12,max=512"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

// SetRoleRequest changes a principal's role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user"`
}

// CreateModelRequest registers a terrain model in the catalog.
type CreateModelRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=256"`
	Description string `json:"description,omitempty" validate:"max=4096"`
	Format      string `json:"format" validate:"required,oneof=gltf obj ifc citygml"`
	AccessLevel string `json:"access_level" validate:"required,oneof=public private"`
}

// CreateZoneRequest registers a survey zone with its WGS84 bounding box.
type CreateZoneRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=256"`
	Description string  `json:"description,omitempty" validate:"max=4096"`
	MinLon      float64 `json:"min_lon" validate:"min=-180,max=180"`
	MinLat      float64 `json:"min_lat" validate:"min=-90,max=90"`
	MaxLon      float64 `json:"max_lon" validate:"min=-180,max=180,gtefield=MinLon"`
	MaxLat      float64 `json:"max_lat" validate:"min=-90,max=90,gtefield=MinLat"`
	AccessLevel string  `json:"access_level" validate:"required,oneof=public private"`
}
