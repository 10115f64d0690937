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
	"testing"

	"github.com/google/uuid"

	"github.com/atlasgate/atlasgate/internal/config"
	"github.com/atlasgate/atlasgate/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreatePrincipal(t *testing.T, db *DB, username string, role models.Role, apiKey string) *models.Principal {
	t.Helper()
	p := &models.Principal{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: "$2a$10$hash",
		Role:         role,
		Active:       true,
		APIKey:       apiKey,
	}
	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return db.CreatePrincipal(context.Background(), tx, p)
	})
	if err != nil {
		t.Fatalf("creating principal %s: %v", username, err)
	}
	return p
}

func TestPrincipalLookups(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "agk_abc")

	got, err := db.GetPrincipal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrincipal: %v", err)
	}
	if got.Username != "surveyor" || got.Role != models.RoleUser || !got.Active {
		t.Errorf("unexpected principal %+v", got)
	}

	byName, err := db.FindPrincipalByUsername(ctx, "surveyor")
	if err != nil || byName.ID != p.ID {
		t.Errorf("FindPrincipalByUsername: %v %v", byName, err)
	}

	byKey, err := db.FindPrincipalByAPIKey(ctx, "agk_abc")
	if err != nil || byKey.ID != p.ID {
		t.Errorf("FindPrincipalByAPIKey: %v %v", byKey, err)
	}

	if _, err := db.GetPrincipal(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing principal err = %v", err)
	}
	if _, err := db.FindPrincipalByAPIKey(ctx, "agk_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key err = %v", err)
	}
}

// A deactivated principal's key stops resolving immediately.
func TestFindPrincipalByAPIKey_InactiveExcluded(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := mustCreatePrincipal(t, db, "leaver", models.RoleUser, "agk_leaver")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.SetPrincipalActive(ctx, tx, p.ID, false)
	})
	if err != nil {
		t.Fatalf("deactivating: %v", err)
	}

	if _, err := db.FindPrincipalByAPIKey(ctx, "agk_leaver"); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive principal's key resolved: %v", err)
	}
}

func TestDuplicateUsernameConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustCreatePrincipal(t, db, "taken", models.RoleUser, "")
	dup := &models.Principal{
		ID:           uuid.New().String(),
		Username:     "taken",
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleUser,
		Active:       true,
	}
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.CreatePrincipal(ctx, tx, dup)
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate username err = %v, want ErrConflict", err)
	}
}

func TestRotateAPIKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "agk_old")

	var result *models.RotationResult
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = db.RotateAPIKey(ctx, tx, p.ID, "agk_new", admin.ID)
		return txErr
	})
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if result.Key != "agk_new" {
		t.Errorf("result key = %q", result.Key)
	}

	// Old key is dead, new key resolves.
	if _, err := db.FindPrincipalByAPIKey(ctx, "agk_old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old key still resolves: %v", err)
	}
	got, err := db.FindPrincipalByAPIKey(ctx, "agk_new")
	if err != nil || got.ID != p.ID {
		t.Errorf("new key lookup: %v %v", got, err)
	}

	// History records the retired key with revoker and timestamp.
	history, err := db.GetKeyHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetKeyHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Key != "agk_old" || history[0].RevokedBy != admin.ID || history[0].RevokedAt == nil {
		t.Errorf("unexpected history entry %+v", history[0])
	}
}

// Rotating twice back to back leaves exactly one active key and two
// revoked history rows, oldest first.
func TestRotateAPIKey_TwiceInSuccession(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "agk_v1")

	for _, next := range []string{"agk_v2", "agk_v3"} {
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			_, txErr := db.RotateAPIKey(ctx, tx, p.ID, next, admin.ID)
			return txErr
		})
		if err != nil {
			t.Fatalf("rotating to %s: %v", next, err)
		}
	}

	// Only the latest key resolves.
	for _, dead := range []string{"agk_v1", "agk_v2"} {
		if _, err := db.FindPrincipalByAPIKey(ctx, dead); !errors.Is(err, ErrNotFound) {
			t.Errorf("retired key %s still resolves: %v", dead, err)
		}
	}
	got, err := db.FindPrincipalByAPIKey(ctx, "agk_v3")
	if err != nil || got.ID != p.ID {
		t.Errorf("latest key lookup: %v %v", got, err)
	}

	history, err := db.GetKeyHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetKeyHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Key != "agk_v1" || history[1].Key != "agk_v2" {
		t.Errorf("history order = %q, %q", history[0].Key, history[1].Key)
	}
	for i, entry := range history {
		if entry.RevokedAt == nil {
			t.Fatalf("history[%d].RevokedAt is nil", i)
		}
		if entry.RevokedBy != admin.ID {
			t.Errorf("history[%d].RevokedBy = %q", i, entry.RevokedBy)
		}
	}
	// The first key was retired before the second one was minted.
	if history[0].RevokedAt.After(history[1].CreatedAt) {
		t.Errorf("first revocation %v after second creation %v",
			history[0].RevokedAt, history[1].CreatedAt)
	}
}

// The install is a compare-and-swap on the old key: a rotation based
// on a stale key value loses with ErrConflict.
func TestRotateAPIKey_StaleLoses(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "agk_v1")

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, txErr := db.RotateAPIKey(ctx, tx, p.ID, "agk_v2", p.ID)
		return txErr
	})
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Simulate the loser of a race: its transaction CAS-updates against
	// the already-replaced key value.
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		res, uerr := tx.ExecContext(ctx,
			`UPDATE principals SET api_key = ? WHERE id = ? AND api_key = ?`,
			"agk_v3", p.ID, "agk_v1")
		if uerr != nil {
			return uerr
		}
		n, uerr := res.RowsAffected()
		if uerr != nil {
			return uerr
		}
		if n == 0 {
			return ErrConflict
		}
		return nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("stale rotation err = %v, want ErrConflict", err)
	}

	// Exactly one active key survives.
	got, gerr := db.GetPrincipal(ctx, p.ID)
	if gerr != nil {
		t.Fatalf("GetPrincipal: %v", gerr)
	}
	if got.APIKey != "agk_v2" {
		t.Errorf("active key = %q, want agk_v2", got.APIKey)
	}
}

func TestRotateAPIKey_RolledBackLeavesOldKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "agk_stay")

	boom := errors.New("downstream failure")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, txErr := db.RotateAPIKey(ctx, tx, p.ID, "agk_gone", p.ID); txErr != nil {
			return txErr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	// Rollback restored the old key and wrote no history.
	got, err := db.FindPrincipalByAPIKey(ctx, "agk_stay")
	if err != nil || got.ID != p.ID {
		t.Errorf("old key lookup after rollback: %v %v", got, err)
	}
	history, err := db.GetKeyHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetKeyHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history length = %d after rollback", len(history))
	}
}

func TestGrants(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "")
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")

	m := &models.Model{ID: uuid.New().String(), Name: "city-block", AccessLevel: models.AccessPrivate}
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.CreateModel(ctx, tx, m)
	}); err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	ok, err := db.HasDirectGrant(ctx, models.KindModel, m.ID, p.ID)
	if err != nil || ok {
		t.Fatalf("unexpected grant before add: %v %v", ok, err)
	}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.AddDirectGrant(ctx, tx, &models.DirectGrant{
			Kind: models.KindModel, ResourceID: m.ID, PrincipalID: p.ID, GrantedBy: admin.ID,
		})
	}); err != nil {
		t.Fatalf("AddDirectGrant: %v", err)
	}

	ok, err = db.HasDirectGrant(ctx, models.KindModel, m.ID, p.ID)
	if err != nil || !ok {
		t.Fatalf("grant not visible after add: %v %v", ok, err)
	}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.RemoveDirectGrant(ctx, tx, models.KindModel, m.ID, p.ID)
	}); err != nil {
		t.Fatalf("RemoveDirectGrant: %v", err)
	}
	ok, err = db.HasDirectGrant(ctx, models.KindModel, m.ID, p.ID)
	if err != nil || ok {
		t.Errorf("grant still visible after remove: %v %v", ok, err)
	}
}

func TestGroupGrantViaMembership(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "")
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")

	z := &models.Zone{ID: uuid.New().String(), Name: "harbor", AccessLevel: models.AccessPrivate}
	g := &models.Group{ID: uuid.New().String(), Name: "field-team", CreatedBy: admin.ID}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.CreateZone(ctx, tx, z); err != nil {
			return err
		}
		if err := db.CreateGroup(ctx, tx, g); err != nil {
			return err
		}
		return db.AddGroupGrant(ctx, tx, &models.GroupGrant{
			Kind: models.KindZone, ResourceID: z.ID, GroupID: g.ID, GrantedBy: admin.ID,
		})
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// Grant exists but the principal is not a member yet.
	ok, err := db.HasGroupGrant(ctx, models.KindZone, z.ID, p.ID)
	if err != nil || ok {
		t.Fatalf("grant visible without membership: %v %v", ok, err)
	}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.AddMember(ctx, tx, g.ID, p.ID, admin.ID)
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	ok, err = db.HasGroupGrant(ctx, models.KindZone, z.ID, p.ID)
	if err != nil || !ok {
		t.Fatalf("grant not visible after join: %v %v", ok, err)
	}

	// Leaving the group revokes derived access on the next check.
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.RemoveMember(ctx, tx, g.ID, p.ID)
	}); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	ok, err = db.HasGroupGrant(ctx, models.KindZone, z.ID, p.ID)
	if err != nil || ok {
		t.Errorf("grant visible after leave: %v %v", ok, err)
	}
}

// Deleting a group removes its memberships and grants atomically.
func TestDeleteGroupCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "")
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")

	z := &models.Zone{ID: uuid.New().String(), Name: "harbor", AccessLevel: models.AccessPrivate}
	g := &models.Group{ID: uuid.New().String(), Name: "field-team", CreatedBy: admin.ID}
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.CreateZone(ctx, tx, z); err != nil {
			return err
		}
		if err := db.CreateGroup(ctx, tx, g); err != nil {
			return err
		}
		if err := db.AddMember(ctx, tx, g.ID, p.ID, admin.ID); err != nil {
			return err
		}
		return db.AddGroupGrant(ctx, tx, &models.GroupGrant{
			Kind: models.KindZone, ResourceID: z.ID, GroupID: g.ID,
		})
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.DeleteGroup(ctx, tx, g.ID)
	}); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	if _, err := db.GetGroup(ctx, g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("group still present: %v", err)
	}
	ok, err := db.HasGroupGrant(ctx, models.KindZone, z.ID, p.ID)
	if err != nil || ok {
		t.Errorf("grant survived group deletion: %v %v", ok, err)
	}
}

// List queries filter visibility in place: public resources for
// everyone, private only for admins and grant holders.
func TestListModelsVisibility(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "")

	pub := &models.Model{ID: uuid.New().String(), Name: "open", AccessLevel: models.AccessPublic}
	priv := &models.Model{ID: uuid.New().String(), Name: "closed", AccessLevel: models.AccessPrivate}
	granted := &models.Model{ID: uuid.New().String(), Name: "shared", AccessLevel: models.AccessPrivate}
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, m := range []*models.Model{pub, priv, granted} {
			if err := db.CreateModel(ctx, tx, m); err != nil {
				return err
			}
		}
		return db.AddDirectGrant(ctx, tx, &models.DirectGrant{
			Kind: models.KindModel, ResourceID: granted.ID, PrincipalID: p.ID,
		})
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	names := func(items []models.Model) map[string]bool {
		set := make(map[string]bool, len(items))
		for _, m := range items {
			set[m.Name] = true
		}
		return set
	}

	anon, err := db.ListModels(ctx, Viewer{Anonymous: true}, 100, 0)
	if err != nil {
		t.Fatalf("anonymous list: %v", err)
	}
	if got := names(anon); len(got) != 1 || !got["open"] {
		t.Errorf("anonymous sees %v", got)
	}

	user, err := db.ListModels(ctx, Viewer{PrincipalID: p.ID}, 100, 0)
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if got := names(user); len(got) != 2 || !got["open"] || !got["shared"] {
		t.Errorf("user sees %v", got)
	}

	adminList, err := db.ListModels(ctx, Viewer{Admin: true, PrincipalID: "whatever"}, 100, 0)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if got := names(adminList); len(got) != 3 {
		t.Errorf("admin sees %v", got)
	}
}

func TestSetAccessLevel(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := &models.Model{ID: uuid.New().String(), Name: "flip", AccessLevel: models.AccessPrivate}
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.CreateModel(ctx, tx, m)
	}); err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.SetAccessLevel(ctx, tx, models.KindModel, m.ID, models.AccessPublic)
	}); err != nil {
		t.Fatalf("SetAccessLevel: %v", err)
	}

	level, err := db.GetResourceAccessLevel(ctx, models.KindModel, m.ID)
	if err != nil || level != models.AccessPublic {
		t.Errorf("level = %v %v", level, err)
	}

	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.SetAccessLevel(ctx, tx, models.KindModel, "ghost", models.AccessPublic)
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing resource err = %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")
	user := mustCreatePrincipal(t, db, "surveyor", models.RoleUser, "")

	for _, tc := range []struct {
		id   string
		want bool
	}{{admin.ID, true}, {user.ID, false}, {"missing", false}} {
		got, err := db.IsAdmin(ctx, tc.id)
		if err != nil {
			t.Fatalf("IsAdmin(%s): %v", tc.id, err)
		}
		if got != tc.want {
			t.Errorf("IsAdmin(%s) = %v, want %v", tc.id, got, tc.want)
		}
	}

	// Deactivation strips admin immediately on this path.
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.SetPrincipalActive(ctx, tx, admin.ID, false)
	}); err != nil {
		t.Fatalf("deactivating: %v", err)
	}
	got, err := db.IsAdmin(ctx, admin.ID)
	if err != nil || got {
		t.Errorf("deactivated admin IsAdmin = %v %v", got, err)
	}
}

func TestListGroupsMemberCounts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	admin := mustCreatePrincipal(t, db, "root", models.RoleAdmin, "")
	users := make([]*models.Principal, 3)
	for i := range users {
		users[i] = mustCreatePrincipal(t, db, fmt.Sprintf("user-%d", i), models.RoleUser, "")
	}

	g := &models.Group{ID: uuid.New().String(), Name: "field-team", CreatedBy: admin.ID}
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.CreateGroup(ctx, tx, g); err != nil {
			return err
		}
		for _, u := range users {
			if err := db.AddMember(ctx, tx, g.ID, u.ID, admin.ID); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	groups, err := db.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].MemberCount != 3 {
		t.Errorf("groups = %+v", groups)
	}
}
