// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atlasgate/atlasgate/internal/models"
)

// CreateGroup inserts a new group inside tx. Group names are unique;
// a duplicate returns ErrConflict.
func (db *DB) CreateGroup(ctx context.Context, tx *sql.Tx, g *models.Group) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Name, nullIfEmpty(g.CreatedBy), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", classifyErr(err))
	}
	return nil
}

// RenameGroup changes a group name inside tx.
func (db *DB) RenameGroup(ctx context.Context, tx *sql.Tx, groupID, name string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), groupID)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", classifyErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	return nil
}

// DeleteGroup removes a group, its memberships, and its grants inside
// tx. Grants disappear with the group, so reads that depended on them
// fail on the next check after commit.
func (db *DB) DeleteGroup(ctx context.Context, tx *sql.Tx, groupID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to delete group memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_grants WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to delete group grants: %w", err)
	}
	return nil
}

// GetGroup fetches a group by id.
func (db *DB) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	g := &models.Group{}
	var createdBy sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at, updated_at FROM groups WHERE id = ?`,
		groupID).Scan(&g.ID, &g.Name, &createdBy, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if createdBy.Valid {
		g.CreatedBy = createdBy.String
	}
	return g, nil
}

// ListGroups returns all groups with member counts.
func (db *DB) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT g.id, g.name, g.created_by, g.created_at, g.updated_at,
			(SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id)
		FROM groups g
		ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		var createdBy sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &createdBy, &g.CreatedAt, &g.UpdatedAt, &g.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		if createdBy.Valid {
			g.CreatedBy = createdBy.String
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddMember adds a principal to a group inside tx. Duplicate
// membership returns ErrConflict.
func (db *DB) AddMember(ctx context.Context, tx *sql.Tx, groupID, principalID, addedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, principal_id, added_by, added_at)
		VALUES (?, ?, ?, ?)`,
		groupID, principalID, nullIfEmpty(addedBy), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add member: %w", classifyErr(err))
	}
	return nil
}

// RemoveMember removes a principal from a group inside tx.
func (db *DB) RemoveMember(ctx context.Context, tx *sql.Tx, groupID, principalID string) error {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND principal_id = ?`,
		groupID, principalID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("membership %s/%s: %w", groupID, principalID, ErrNotFound)
	}
	return nil
}

// ListMembers returns a group's memberships.
func (db *DB) ListMembers(ctx context.Context, groupID string) ([]models.Membership, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT group_id, principal_id, added_by, added_at
		FROM group_members WHERE group_id = ?
		ORDER BY added_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		var addedBy sql.NullString
		if err := rows.Scan(&m.GroupID, &m.PrincipalID, &addedBy, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		if addedBy.Valid {
			m.AddedBy = addedBy.String
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
