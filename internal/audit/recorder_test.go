// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/atlasgate/atlasgate/internal/config"
	"github.com/atlasgate/atlasgate/internal/database"
)

func testRecorder(t *testing.T) (*Recorder, *database.DB) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r, err := NewRecorder(db.Conn())
	if err != nil {
		t.Fatalf("creating recorder: %v", err)
	}
	return r, db
}

func record(t *testing.T, r *Recorder, db *database.DB, e *Entry) {
	t.Helper()
	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return r.Record(context.Background(), tx, e)
	})
	if err != nil {
		t.Fatalf("recording entry: %v", err)
	}
}

func TestRecorder_RecordAndQuery(t *testing.T) {
	r, db := testRecorder(t)
	ctx := context.Background()

	record(t, r, db, &Entry{
		Action:  ActionKeyRotated,
		ActorID: "admin-1",
		Target:  Target{Kind: "principal", ID: "p-1", Name: "surveyor"},
		Details: Detail(map[string]interface{}{"reason": "scheduled"}),
		Source:  Source{IPAddress: "10.0.0.1", UserAgent: "curl/8"},
	})

	entries, err := r.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Action != ActionKeyRotated || e.ActorID != "admin-1" || e.Target.ID != "p-1" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("id/timestamp not assigned: %+v", e)
	}
	if e.Source.IPAddress != "10.0.0.1" {
		t.Errorf("source = %+v", e.Source)
	}
}

// The audit row lives inside the caller's transaction: if the mutation
// rolls back, no orphaned audit record survives.
func TestRecorder_RollbackDiscards(t *testing.T) {
	r, db := testRecorder(t)
	ctx := context.Background()

	boom := errors.New("mutation failed")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if rerr := r.Record(ctx, tx, &Entry{
			Action:  ActionGroupCreated,
			ActorID: "admin-1",
			Target:  Target{Kind: "group", ID: "g-1"},
		}); rerr != nil {
			return rerr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	entries, err := r.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("rolled-back audit entry persisted: %+v", entries)
	}
}

func TestRecorder_QueryFilters(t *testing.T) {
	r, db := testRecorder(t)
	ctx := context.Background()

	record(t, r, db, &Entry{Action: ActionGroupCreated, ActorID: "a-1", Target: Target{Kind: "group", ID: "g-1"}})
	record(t, r, db, &Entry{Action: ActionGrantAdded, ActorID: "a-1", Target: Target{Kind: "model", ID: "m-1"}})
	record(t, r, db, &Entry{Action: ActionGrantAdded, ActorID: "a-2", Target: Target{Kind: "model", ID: "m-2"}})

	byAction, err := r.Query(ctx, Filter{Action: ActionGrantAdded})
	if err != nil || len(byAction) != 2 {
		t.Errorf("by action: %d %v", len(byAction), err)
	}

	byActor, err := r.Query(ctx, Filter{ActorID: "a-2"})
	if err != nil || len(byActor) != 1 {
		t.Errorf("by actor: %d %v", len(byActor), err)
	}

	byTarget, err := r.Query(ctx, Filter{TargetID: "m-1"})
	if err != nil || len(byTarget) != 1 {
		t.Errorf("by target: %d %v", len(byTarget), err)
	}

	future := time.Now().Add(time.Hour)
	none, err := r.Query(ctx, Filter{Since: &future})
	if err != nil || len(none) != 0 {
		t.Errorf("since future: %d %v", len(none), err)
	}
}

func TestRecorder_NewestFirst(t *testing.T) {
	r, db := testRecorder(t)
	ctx := context.Background()

	first := time.Now().Add(-2 * time.Hour)
	second := time.Now().Add(-1 * time.Hour)
	record(t, r, db, &Entry{Timestamp: first, Action: ActionGroupCreated, ActorID: "a-1", Target: Target{Kind: "group", ID: "g-1"}})
	record(t, r, db, &Entry{Timestamp: second, Action: ActionGroupDeleted, ActorID: "a-1", Target: Target{Kind: "group", ID: "g-1"}})

	entries, err := r.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if !entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Errorf("not newest first: %v then %v", entries[0].Timestamp, entries[1].Timestamp)
	}
}
