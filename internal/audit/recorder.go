// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlasgate/atlasgate/internal/metrics"
)

// Recorder writes and queries audit entries. It owns the audit_log
// table on the shared database but writes exclusively through
// caller-provided transactions.
type Recorder struct {
	conn *sql.DB
}

// NewRecorder creates a recorder and ensures its schema exists.
func NewRecorder(conn *sql.DB) (*Recorder, error) {
	r := &Recorder{conn: conn}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initSchema() error {
	_, err := r.conn.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id VARCHAR PRIMARY KEY,
			ts TIMESTAMP NOT NULL,
			action VARCHAR NOT NULL,
			actor_id VARCHAR NOT NULL,
			target_kind VARCHAR NOT NULL,
			target_id VARCHAR NOT NULL,
			target_name VARCHAR,
			details VARCHAR,
			source_ip VARCHAR,
			user_agent VARCHAR
		)`)
	if err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	_, err = r.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log (actor_id)`)
	if err != nil {
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	return nil
}

// Record inserts an audit entry on the caller's open transaction. The
// entry's ID and Timestamp are assigned here if unset. Record never
// commits or rolls back; the surrounding mutation owns the outcome.
func (r *Recorder) Record(ctx context.Context, tx *sql.Tx, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var details interface{}
	if len(e.Details) > 0 {
		details = string(e.Details)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log
			(id, ts, action, actor_id, target_kind, target_id, target_name, details, source_ip, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, string(e.Action), e.ActorID,
		e.Target.Kind, e.Target.ID, emptyToNull(e.Target.Name),
		details, emptyToNull(e.Source.IPAddress), emptyToNull(e.Source.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	metrics.AuditRecordsTotal.WithLabelValues(string(e.Action)).Inc()
	return nil
}

// Query returns entries matching the filter, newest first.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, ts, action, actor_id, target_kind, target_id, target_name, details, source_ip, user_agent
		FROM audit_log WHERE 1=1`
	args := []interface{}{}

	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(filter.Action))
	}
	if filter.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}
	if filter.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, filter.TargetID)
	}
	if filter.Since != nil {
		query += ` AND ts >= ?`
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += ` AND ts <= ?`
		args = append(args, *filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY ts DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var action string
		var targetName, details, sourceIP, userAgent sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.ActorID,
			&e.Target.Kind, &e.Target.ID, &targetName, &details, &sourceIP, &userAgent); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.Action = ActionKind(action)
		if targetName.Valid {
			e.Target.Name = targetName.String
		}
		if details.Valid {
			e.Details = []byte(details.String)
		}
		if sourceIP.Valid {
			e.Source.IPAddress = sourceIP.String
		}
		if userAgent.Valid {
			e.Source.UserAgent = userAgent.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// emptyToNull maps "" to SQL NULL.
func emptyToNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
