// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package database

import "fmt"

// initSchema creates all tables and indexes. Every statement is
// idempotent, so startup against an existing database is a no-op.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS principals (
			id VARCHAR PRIMARY KEY,
			username VARCHAR NOT NULL UNIQUE,
			password_hash VARCHAR NOT NULL,
			role VARCHAR NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			api_key VARCHAR UNIQUE,
			key_created_at TIMESTAMP,
			last_login_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// One history row per retired key. The uniqueness guard turns a
		// double-rotation race into a constraint violation instead of
		// two simultaneously revoked copies of the same key.
		`CREATE TABLE IF NOT EXISTS api_key_history (
			id VARCHAR PRIMARY KEY,
			principal_id VARCHAR NOT NULL,
			api_key VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP,
			revoked_by VARCHAR,
			UNIQUE (principal_id, api_key)
		)`,

		`CREATE TABLE IF NOT EXISTS groups (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL UNIQUE,
			created_by VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id VARCHAR NOT NULL,
			principal_id VARCHAR NOT NULL,
			added_by VARCHAR,
			added_at TIMESTAMP NOT NULL,
			PRIMARY KEY (group_id, principal_id)
		)`,

		`CREATE TABLE IF NOT EXISTS models (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			access_level VARCHAR NOT NULL DEFAULT 'private',
			format VARCHAR,
			created_by VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS zones (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			access_level VARCHAR NOT NULL DEFAULT 'private',
			min_lon DOUBLE NOT NULL DEFAULT 0,
			min_lat DOUBLE NOT NULL DEFAULT 0,
			max_lon DOUBLE NOT NULL DEFAULT 0,
			max_lat DOUBLE NOT NULL DEFAULT 0,
			created_by VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS direct_grants (
			kind VARCHAR NOT NULL,
			resource_id VARCHAR NOT NULL,
			principal_id VARCHAR NOT NULL,
			granted_by VARCHAR,
			granted_at TIMESTAMP NOT NULL,
			PRIMARY KEY (kind, resource_id, principal_id)
		)`,

		`CREATE TABLE IF NOT EXISTS group_grants (
			kind VARCHAR NOT NULL,
			resource_id VARCHAR NOT NULL,
			group_id VARCHAR NOT NULL,
			granted_by VARCHAR,
			granted_at TIMESTAMP NOT NULL,
			PRIMARY KEY (kind, resource_id, group_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_principals_api_key ON principals (api_key)`,
		`CREATE INDEX IF NOT EXISTS idx_key_history_principal ON api_key_history (principal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_principal ON group_members (principal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_direct_grants_principal ON direct_grants (principal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_group_grants_group ON group_grants (group_id)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
