// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atlasgate/atlasgate/internal/models"
)

// HasDirectGrant reports whether a direct grant exists for the
// (kind, resource, principal) triple.
func (db *DB) HasDirectGrant(ctx context.Context, kind models.ResourceKind, resourceID, principalID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM direct_grants
			WHERE kind = ? AND resource_id = ? AND principal_id = ?
		)`, kind.String(), resourceID, principalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check direct grant: %w", err)
	}
	return exists, nil
}

// HasGroupGrant reports whether the principal currently belongs to any
// group holding a grant on the resource. The membership join runs on
// every call; there is no cache, so membership and grant changes are
// visible on the next check.
func (db *DB) HasGroupGrant(ctx context.Context, kind models.ResourceKind, resourceID, principalID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM group_grants gg
			JOIN group_members gm ON gm.group_id = gg.group_id
			WHERE gg.kind = ? AND gg.resource_id = ? AND gm.principal_id = ?
		)`, kind.String(), resourceID, principalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group grant: %w", err)
	}
	return exists, nil
}

// AddDirectGrant inserts a direct grant inside tx. A duplicate grant
// returns ErrConflict.
func (db *DB) AddDirectGrant(ctx context.Context, tx *sql.Tx, g *models.DirectGrant) error {
	g.GrantedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO direct_grants (kind, resource_id, principal_id, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.Kind.String(), g.ResourceID, g.PrincipalID, nullIfEmpty(g.GrantedBy), g.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to add direct grant: %w", classifyErr(err))
	}
	return nil
}

// RemoveDirectGrant deletes a direct grant inside tx. Once the
// transaction commits, the very next access check fails.
func (db *DB) RemoveDirectGrant(ctx context.Context, tx *sql.Tx, kind models.ResourceKind, resourceID, principalID string) error {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM direct_grants WHERE kind = ? AND resource_id = ? AND principal_id = ?`,
		kind.String(), resourceID, principalID)
	if err != nil {
		return fmt.Errorf("failed to remove direct grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("direct grant %s/%s/%s: %w", kind, resourceID, principalID, ErrNotFound)
	}
	return nil
}

// AddGroupGrant inserts a group grant inside tx.
func (db *DB) AddGroupGrant(ctx context.Context, tx *sql.Tx, g *models.GroupGrant) error {
	g.GrantedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_grants (kind, resource_id, group_id, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.Kind.String(), g.ResourceID, g.GroupID, nullIfEmpty(g.GrantedBy), g.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to add group grant: %w", classifyErr(err))
	}
	return nil
}

// RemoveGroupGrant deletes a group grant inside tx.
func (db *DB) RemoveGroupGrant(ctx context.Context, tx *sql.Tx, kind models.ResourceKind, resourceID, groupID string) error {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM group_grants WHERE kind = ? AND resource_id = ? AND group_id = ?`,
		kind.String(), resourceID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove group grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group grant %s/%s/%s: %w", kind, resourceID, groupID, ErrNotFound)
	}
	return nil
}

// ListGrants returns the full grant state of one resource.
func (db *DB) ListGrants(ctx context.Context, kind models.ResourceKind, resourceID string) (*models.ResourceGrants, error) {
	level, err := db.GetResourceAccessLevel(ctx, kind, resourceID)
	if err != nil {
		return nil, err
	}

	out := &models.ResourceGrants{
		Kind:        kind,
		ResourceID:  resourceID,
		AccessLevel: level,
		Direct:      []models.DirectGrant{},
		Groups:      []models.GroupGrant{},
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT principal_id, granted_by, granted_at
		FROM direct_grants WHERE kind = ? AND resource_id = ?
		ORDER BY granted_at`, kind.String(), resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct grants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		g := models.DirectGrant{Kind: kind, ResourceID: resourceID}
		var grantedBy sql.NullString
		if err := rows.Scan(&g.PrincipalID, &grantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan direct grant: %w", err)
		}
		if grantedBy.Valid {
			g.GrantedBy = grantedBy.String
		}
		out.Direct = append(out.Direct, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groupRows, err := db.conn.QueryContext(ctx, `
		SELECT group_id, granted_by, granted_at
		FROM group_grants WHERE kind = ? AND resource_id = ?
		ORDER BY granted_at`, kind.String(), resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group grants: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		g := models.GroupGrant{Kind: kind, ResourceID: resourceID}
		var grantedBy sql.NullString
		if err := groupRows.Scan(&g.GroupID, &grantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group grant: %w", err)
		}
		if grantedBy.Valid {
			g.GrantedBy = grantedBy.String
		}
		out.Groups = append(out.Groups, g)
	}
	return out, groupRows.Err()
}
