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

	"github.com/google/uuid"

	"github.com/atlasgate/atlasgate/internal/models"
)

// RotateAPIKey atomically replaces a principal's active key inside tx:
// the current key is appended to history with revoked_at=now and
// revoked_by=requester, then the new key is installed and
// key_created_at updated.
//
// The install is a compare-and-swap on the old key value, so two
// concurrent rotations cannot both win: the loser's UPDATE matches
// zero rows and the call returns ErrConflict. A concurrent
// authentication sees the old key before commit or the new key after,
// never both valid and never neither.
func (db *DB) RotateAPIKey(ctx context.Context, tx *sql.Tx, principalID, newKey, revokedBy string) (*models.RotationResult, error) {
	var oldKey sql.NullString
	var oldCreatedAt sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT api_key, key_created_at FROM principals WHERE id = ?`,
		principalID).Scan(&oldKey, &oldCreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("principal %s: %w", principalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current key: %w", err)
	}

	now := time.Now().UTC()

	if oldKey.Valid {
		createdAt := now
		if oldCreatedAt.Valid {
			createdAt = oldCreatedAt.Time
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO api_key_history
				(id, principal_id, api_key, created_at, revoked_at, revoked_by)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), principalID, oldKey.String, createdAt, now, revokedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to append key history: %w", classifyErr(err))
		}
	}

	var res sql.Result
	if oldKey.Valid {
		res, err = tx.ExecContext(ctx,
			`UPDATE principals SET api_key = ?, key_created_at = ?, updated_at = ?
			 WHERE id = ? AND api_key = ?`,
			newKey, now, now, principalID, oldKey.String)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE principals SET api_key = ?, key_created_at = ?, updated_at = ?
			 WHERE id = ? AND api_key IS NULL`,
			newKey, now, now, principalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to install new key: %w", classifyErr(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("key rotation for %s lost a concurrent race: %w", principalID, ErrConflict)
	}

	return &models.RotationResult{Key: newKey, CreatedAt: now}, nil
}

// GetKeyHistory returns a principal's retired keys, oldest first.
func (db *DB) GetKeyHistory(ctx context.Context, principalID string) ([]models.APIKeyHistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, principal_id, api_key, created_at, revoked_at, revoked_by
		FROM api_key_history
		WHERE principal_id = ?
		ORDER BY revoked_at ASC`, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query key history: %w", err)
	}
	defer rows.Close()

	var entries []models.APIKeyHistoryEntry
	for rows.Next() {
		var e models.APIKeyHistoryEntry
		var revokedAt sql.NullTime
		var revokedBy sql.NullString
		if err := rows.Scan(&e.ID, &e.PrincipalID, &e.Key, &e.CreatedAt, &revokedAt, &revokedBy); err != nil {
			return nil, fmt.Errorf("failed to scan key history row: %w", err)
		}
		if revokedAt.Valid {
			e.RevokedAt = &revokedAt.Time
		}
		if revokedBy.Valid {
			e.RevokedBy = revokedBy.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
