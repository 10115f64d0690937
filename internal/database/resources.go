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

// Viewer carries the identity facts the visibility filter needs. It is
// derived from the resolved principal at the API layer; the store never
// sees credentials.
type Viewer struct {
	// Anonymous means no identity: only public rows are visible.
	Anonymous bool

	// Admin short-circuits all grant checks.
	Admin bool

	// PrincipalID keys the direct and group grant predicates.
	PrincipalID string
}

// visibilityPredicate is the SQL form of the access evaluator's
// predicate chain for list filtering. The same grant sources feed the
// single-resource path in internal/authz; the two must stay in step.
const visibilityPredicate = `(
	r.access_level = 'public'
	OR ? -- admin sees everything
	OR EXISTS (
		SELECT 1 FROM direct_grants dg
		WHERE dg.kind = ? AND dg.resource_id = r.id AND dg.principal_id = ?
	)
	OR EXISTS (
		SELECT 1 FROM group_grants gg
		JOIN group_members gm ON gm.group_id = gg.group_id
		WHERE gg.kind = ? AND gg.resource_id = r.id AND gm.principal_id = ?
	)
)`

// tableForKind maps a resource kind to its table.
func tableForKind(kind models.ResourceKind) (string, error) {
	switch kind {
	case models.KindModel:
		return "models", nil
	case models.KindZone:
		return "zones", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}

// GetResourceAccessLevel returns a resource's access level, or
// ErrNotFound if the resource does not exist.
func (db *DB) GetResourceAccessLevel(ctx context.Context, kind models.ResourceKind, resourceID string) (models.AccessLevel, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return "", err
	}

	var level string
	err = db.conn.QueryRowContext(ctx,
		//nolint:gosec // table comes from the closed kind mapping above
		fmt.Sprintf(`SELECT access_level FROM %s WHERE id = ?`, table),
		resourceID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", kind, resourceID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get access level: %w", err)
	}

	parsed, ok := models.ParseAccessLevel(level)
	if !ok {
		return "", fmt.Errorf("%s %s has unknown access level %q", kind, resourceID, level)
	}
	return parsed, nil
}

// SetAccessLevel changes a resource's visibility inside tx.
func (db *DB) SetAccessLevel(ctx context.Context, tx *sql.Tx, kind models.ResourceKind, resourceID string, level models.AccessLevel) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		//nolint:gosec // table comes from the closed kind mapping above
		fmt.Sprintf(`UPDATE %s SET access_level = ?, updated_at = ? WHERE id = ?`, table),
		string(level), time.Now().UTC(), resourceID)
	if err != nil {
		return fmt.Errorf("failed to set access level: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, resourceID, ErrNotFound)
	}
	return nil
}

// GetResourceName returns a resource's display name for audit targets.
func (db *DB) GetResourceName(ctx context.Context, kind models.ResourceKind, resourceID string) (string, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return "", err
	}
	var name string
	err = db.conn.QueryRowContext(ctx,
		//nolint:gosec // table comes from the closed kind mapping above
		fmt.Sprintf(`SELECT name FROM %s WHERE id = ?`, table),
		resourceID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", kind, resourceID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get resource name: %w", err)
	}
	return name, nil
}

// CreateModel inserts a model inside tx.
func (db *DB) CreateModel(ctx context.Context, tx *sql.Tx, m *models.Model) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	_, err := tx.ExecContext(ctx, `
		INSERT INTO models (id, name, access_level, format, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, string(m.AccessLevel), nullIfEmpty(m.Format),
		nullIfEmpty(m.CreatedBy), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", classifyErr(err))
	}
	return nil
}

// CreateZone inserts a zone inside tx.
func (db *DB) CreateZone(ctx context.Context, tx *sql.Tx, z *models.Zone) error {
	now := time.Now().UTC()
	z.CreatedAt = now
	z.UpdatedAt = now
	_, err := tx.ExecContext(ctx, `
		INSERT INTO zones (id, name, access_level, min_lon, min_lat, max_lon, max_lat, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		z.ID, z.Name, string(z.AccessLevel), z.MinLon, z.MinLat, z.MaxLon, z.MaxLat,
		nullIfEmpty(z.CreatedBy), z.CreatedAt, z.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create zone: %w", classifyErr(err))
	}
	return nil
}

// GetModel fetches a model by id without visibility filtering; the
// caller runs the access evaluator and masks invisible resources as
// not found.
func (db *DB) GetModel(ctx context.Context, id string) (*models.Model, error) {
	m := &models.Model{}
	var level string
	var format, createdBy sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, access_level, format, created_by, created_at, updated_at
		FROM models WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &level, &format, &createdBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	m.AccessLevel = models.AccessLevel(level)
	if format.Valid {
		m.Format = format.String
	}
	if createdBy.Valid {
		m.CreatedBy = createdBy.String
	}
	return m, nil
}

// GetZone fetches a zone by id without visibility filtering.
func (db *DB) GetZone(ctx context.Context, id string) (*models.Zone, error) {
	z := &models.Zone{}
	var level string
	var createdBy sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, access_level, min_lon, min_lat, max_lon, max_lat, created_by, created_at, updated_at
		FROM zones WHERE id = ?`, id).
		Scan(&z.ID, &z.Name, &level, &z.MinLon, &z.MinLat, &z.MaxLon, &z.MaxLat,
			&createdBy, &z.CreatedAt, &z.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("zone %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	z.AccessLevel = models.AccessLevel(level)
	if createdBy.Valid {
		z.CreatedBy = createdBy.String
	}
	return z, nil
}

// ListModels returns the models visible to the viewer, name-ordered.
func (db *DB) ListModels(ctx context.Context, viewer Viewer, limit, offset int) ([]models.Model, error) {
	query := `
		SELECT r.id, r.name, r.access_level, r.format, r.created_by, r.created_at, r.updated_at
		FROM models r WHERE `
	args := []interface{}{}
	if viewer.Anonymous {
		query += `r.access_level = 'public'`
	} else {
		query += visibilityPredicate
		args = append(args, viewer.Admin,
			models.KindModel.String(), viewer.PrincipalID,
			models.KindModel.String(), viewer.PrincipalID)
	}
	query += ` ORDER BY r.name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	out := []models.Model{}
	for rows.Next() {
		var m models.Model
		var level string
		var format, createdBy sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &level, &format, &createdBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		m.AccessLevel = models.AccessLevel(level)
		if format.Valid {
			m.Format = format.String
		}
		if createdBy.Valid {
			m.CreatedBy = createdBy.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListZones returns the zones visible to the viewer, name-ordered.
func (db *DB) ListZones(ctx context.Context, viewer Viewer, limit, offset int) ([]models.Zone, error) {
	query := `
		SELECT r.id, r.name, r.access_level, r.min_lon, r.min_lat, r.max_lon, r.max_lat,
			r.created_by, r.created_at, r.updated_at
		FROM zones r WHERE `
	args := []interface{}{}
	if viewer.Anonymous {
		query += `r.access_level = 'public'`
	} else {
		query += visibilityPredicate
		args = append(args, viewer.Admin,
			models.KindZone.String(), viewer.PrincipalID,
			models.KindZone.String(), viewer.PrincipalID)
	}
	query += ` ORDER BY r.name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	out := []models.Zone{}
	for rows.Next() {
		var z models.Zone
		var level string
		var createdBy sql.NullString
		if err := rows.Scan(&z.ID, &z.Name, &level, &z.MinLon, &z.MinLat, &z.MaxLon, &z.MaxLat,
			&createdBy, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		z.AccessLevel = models.AccessLevel(level)
		if createdBy.Valid {
			z.CreatedBy = createdBy.String
		}
		out = append(out, z)
	}
	return out, rows.Err()
}
