// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/atlasgate/atlasgate/internal/audit"
	"github.com/atlasgate/atlasgate/internal/database"
	"github.com/atlasgate/atlasgate/internal/logging"
	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

// apiKeyPrefix marks Atlasgate keys so they are greppable in leaked
// logs and config files.
const apiKeyPrefix = "agk_"

// apiKeyBytes is the entropy of the random portion.
const apiKeyBytes = 32

// KeyManager rotates principal API keys. Rotation, history archival
// and the audit record commit in one transaction, so at any instant a
// principal has at most one active key and every superseded key has a
// history row naming who revoked it and when.
type KeyManager struct {
	db       *database.DB
	recorder *audit.Recorder
	seclog   *logging.SecurityLogger
}

// NewKeyManager creates a KeyManager.
func NewKeyManager(db *database.DB, recorder *audit.Recorder, seclog *logging.SecurityLogger) *KeyManager {
	return &KeyManager{db: db, recorder: recorder, seclog: seclog}
}

// Rotate issues a fresh key for the principal, revoking the current
// one. rotatedBy is the acting principal (self-rotation or an admin
// acting on another account). Concurrent rotations of the same
// principal serialize on the stored key value: exactly one wins, the
// loser gets database.ErrConflict.
func (m *KeyManager) Rotate(ctx context.Context, principalID, rotatedBy string, src audit.Source) (*models.RotationResult, error) {
	newKey, err := GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generating api key: %w", err)
	}

	var result *models.RotationResult
	err = m.db.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = m.db.RotateAPIKey(ctx, tx, principalID, newKey, rotatedBy)
		if txErr != nil {
			return txErr
		}
		return m.recorder.Record(ctx, tx, &audit.Entry{
			Action:  audit.ActionKeyRotated,
			ActorID: rotatedBy,
			Target:  audit.Target{Kind: "principal", ID: principalID},
			Source:  src,
		})
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.KeyRotationsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.KeyRotationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.KeyRotationsTotal.WithLabelValues("ok").Inc()
	m.seclog.LogKeyRotated(principalID, rotatedBy, src.IPAddress)
	return result, nil
}

// GenerateAPIKey returns a fresh random key in the agk_ format.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
