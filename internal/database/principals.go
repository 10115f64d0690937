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

	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

const principalColumns = `id, username, password_hash, role, active,
	api_key, key_created_at, last_login_at, created_at, updated_at`

// scanPrincipal scans a principal row, handling nullable columns.
func scanPrincipal(scanner interface{ Scan(dest ...interface{}) error }) (*models.Principal, error) {
	p := &models.Principal{}
	var role string
	var apiKey sql.NullString
	var keyCreatedAt, lastLoginAt sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.Username, &p.PasswordHash, &role, &p.Active,
		&apiKey, &keyCreatedAt, &lastLoginAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, ok := models.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("principal %s has unknown role %q", p.ID, role)
	}
	p.Role = parsed

	if apiKey.Valid {
		p.APIKey = apiKey.String
	}
	if keyCreatedAt.Valid {
		p.KeyCreatedAt = keyCreatedAt.Time
	}
	if lastLoginAt.Valid {
		p.LastLoginAt = &lastLoginAt.Time
	}
	return p, nil
}

// CreatePrincipal inserts a new principal inside tx.
func (db *DB) CreatePrincipal(ctx context.Context, tx *sql.Tx, p *models.Principal) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO principals
			(id, username, password_hash, role, active, api_key, key_created_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.PasswordHash, p.Role.String(), p.Active,
		nullIfEmpty(p.APIKey), p.KeyCreatedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", classifyErr(err))
	}
	return nil
}

// GetPrincipal fetches a principal by id.
func (db *DB) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ?`, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("principal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	return p, nil
}

// FindPrincipalByUsername fetches a principal by unique username.
func (db *DB) FindPrincipalByUsername(ctx context.Context, username string) (*models.Principal, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE username = ?`, username)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("username %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find principal by username: %w", err)
	}
	return p, nil
}

// FindPrincipalByAPIKey fetches a principal by its currently active
// key. Revoked keys live only in api_key_history and never match, and
// a deactivated principal's key stops resolving immediately.
func (db *DB) FindPrincipalByAPIKey(ctx context.Context, key string) (*models.Principal, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("principal_by_key").Observe(time.Since(start).Seconds())
	}()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE api_key = ? AND active`, key)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find principal by api key: %w", err)
	}
	return p, nil
}

// IsAdmin reports whether the principal exists, is active, and holds
// the admin role.
func (db *DB) IsAdmin(ctx context.Context, principalID string) (bool, error) {
	var isAdmin bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT role = 'admin' AND active FROM principals WHERE id = ?`,
		principalID).Scan(&isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return isAdmin, nil
}

// UpdateLastLogin stamps a successful password login.
func (db *DB) UpdateLastLogin(ctx context.Context, principalID string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE principals SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at, at, principalID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetPrincipalActive activates or deactivates a principal inside tx.
// Deactivation takes effect immediately for API-key authentication;
// outstanding session tokens expire on their own schedule.
func (db *DB) SetPrincipalActive(ctx context.Context, tx *sql.Tx, principalID string, active bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE principals SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), principalID)
	if err != nil {
		return fmt.Errorf("failed to set principal active: %w", err)
	}
	return requireRowAffected(res, principalID)
}

// SetPrincipalRole changes a principal's role inside tx.
func (db *DB) SetPrincipalRole(ctx context.Context, tx *sql.Tx, principalID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE principals SET role = ?, updated_at = ? WHERE id = ?`,
		role.String(), time.Now().UTC(), principalID)
	if err != nil {
		return fmt.Errorf("failed to set principal role: %w", err)
	}
	return requireRowAffected(res, principalID)
}

// requireRowAffected converts a zero-row update into ErrNotFound.
func requireRowAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("principal %s: %w", id, ErrNotFound)
	}
	return nil
}

// nullIfEmpty maps "" to SQL NULL for nullable VARCHAR columns.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
