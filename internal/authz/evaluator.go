// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package authz

import (
	"context"
	"fmt"

	"github.com/atlasgate/atlasgate/internal/auth"
	"github.com/atlasgate/atlasgate/internal/metrics"
	"github.com/atlasgate/atlasgate/internal/models"
)

// GrantStore is the slice of the database the evaluator consumes.
// Lookups hit the store directly on every evaluation; grants and
// memberships are deliberately uncached so a change is visible on the
// next check.
type GrantStore interface {
	GetResourceAccessLevel(ctx context.Context, kind models.ResourceKind, resourceID string) (models.AccessLevel, error)
	HasDirectGrant(ctx context.Context, kind models.ResourceKind, resourceID, principalID string) (bool, error)
	HasGroupGrant(ctx context.Context, kind models.ResourceKind, resourceID, principalID string) (bool, error)
}

// Decision is the outcome of an access evaluation, naming the
// predicate that settled it.
type Decision struct {
	Allowed   bool
	Predicate string
}

// Evaluator decides whether a subject may read a resource. The rule
// set is an ordered chain of predicates, cheapest first, evaluated
// with short-circuit: the first predicate that settles the question
// wins and later ones never run.
type Evaluator struct {
	store GrantStore
}

// NewEvaluator creates an Evaluator over the grant store.
func NewEvaluator(store GrantStore) *Evaluator {
	return &Evaluator{store: store}
}

// predicate inspects one access rule. settled=false passes to the next
// rule in the chain.
type predicate struct {
	name string
	eval func(ctx context.Context, subject *auth.Subject, kind models.ResourceKind, resourceID string) (allowed, settled bool, err error)
}

func (e *Evaluator) chain() []predicate {
	return []predicate{
		{"resource_public", e.resourcePublic},
		{"subject_anonymous", e.subjectAnonymous},
		{"subject_admin", e.subjectAdmin},
		{"direct_grant", e.directGrant},
		{"group_grant", e.groupGrant},
	}
}

// CanRead evaluates the subject's read access to the resource. A
// missing resource surfaces the store's not-found error unchanged so
// the HTTP layer can answer identically for "absent" and "hidden".
func (e *Evaluator) CanRead(ctx context.Context, subject *auth.Subject, kind models.ResourceKind, resourceID string) (Decision, error) {
	for _, p := range e.chain() {
		allowed, settled, err := p.eval(ctx, subject, kind, resourceID)
		if err != nil {
			return Decision{}, fmt.Errorf("evaluating %s: %w", p.name, err)
		}
		if settled {
			d := Decision{Allowed: allowed, Predicate: p.name}
			metrics.AccessDecisionsTotal.WithLabelValues(string(kind), p.name, decisionLabel(allowed)).Inc()
			return d, nil
		}
	}

	// Private resource, authenticated non-admin, no grant on any path.
	d := Decision{Allowed: false, Predicate: "no_grant"}
	metrics.AccessDecisionsTotal.WithLabelValues(string(kind), d.Predicate, "deny").Inc()
	return d, nil
}

// resourcePublic allows everyone, anonymous included, when the
// resource is public. This is the only rule evaluated for anonymous
// callers that can allow.
func (e *Evaluator) resourcePublic(ctx context.Context, _ *auth.Subject, kind models.ResourceKind, resourceID string) (bool, bool, error) {
	level, err := e.store.GetResourceAccessLevel(ctx, kind, resourceID)
	if err != nil {
		return false, false, err
	}
	if level == models.AccessPublic {
		return true, true, nil
	}
	return false, false, nil
}

// subjectAnonymous denies anonymous callers for anything non-public.
func (e *Evaluator) subjectAnonymous(_ context.Context, subject *auth.Subject, _ models.ResourceKind, _ string) (bool, bool, error) {
	if subject.Anonymous {
		return false, true, nil
	}
	return false, false, nil
}

// subjectAdmin allows admins unconditionally, before any grant lookup.
func (e *Evaluator) subjectAdmin(_ context.Context, subject *auth.Subject, _ models.ResourceKind, _ string) (bool, bool, error) {
	if subject.IsAdmin() {
		return true, true, nil
	}
	return false, false, nil
}

// directGrant allows on an individual grant to the subject.
func (e *Evaluator) directGrant(ctx context.Context, subject *auth.Subject, kind models.ResourceKind, resourceID string) (bool, bool, error) {
	ok, err := e.store.HasDirectGrant(ctx, kind, resourceID, subject.ID)
	if err != nil {
		return false, false, err
	}
	return ok, ok, nil
}

// groupGrant allows when any group the subject belongs to holds a
// grant on the resource.
func (e *Evaluator) groupGrant(ctx context.Context, subject *auth.Subject, kind models.ResourceKind, resourceID string) (bool, bool, error) {
	ok, err := e.store.HasGroupGrant(ctx, kind, resourceID, subject.ID)
	if err != nil {
		return false, false, err
	}
	return ok, ok, nil
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
