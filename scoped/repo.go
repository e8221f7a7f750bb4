// Package scoped provides the tenant-scoped data access layer. Every
// read and write is narrowed to the active organization resolved from
// the request context; when no organization can be resolved the layer
// fails closed. The Unscoped escape hatch bypasses the narrowing and is
// deliberately a distinct type so its use is visible at call sites.
package scoped

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/record"
)

// Repo is the default, organization-scoped accessor for records.
type Repo struct {
	mgr *bulkhead.Manager
}

// NewRepo creates a scoped accessor bound to the manager's store.
func NewRepo(mgr *bulkhead.Manager) *Repo {
	return &Repo{mgr: mgr}
}

// Unscoped returns the escape hatch: an accessor that sees every
// tenant's records. Call sites read as repo.Unscoped().List(...), which
// is the point.
func (r *Repo) Unscoped() *UnscopedRepo {
	return &UnscopedRepo{mgr: r.mgr}
}

// List returns the active organization's records of the given type.
// When no organization is resolvable it returns an empty result rather
// than an error: a caller that forgot to establish context sees nothing,
// not everything.
func (r *Repo) List(ctx context.Context, recordType string) ([]*record.Record, error) {
	orgID, ok := r.mgr.CurrentOrgID(ctx)
	if !ok {
		return nil, nil
	}
	return r.mgr.Store().ListRecordsByOrg(ctx, recordType, orgID)
}

// Get retrieves a single record by type and id, verifying that the
// active organization owns it. A record owned by another organization is
// reported to the audit log and surfaced as ErrNotFound, so an
// unprivileged caller cannot distinguish "does not exist" from "exists
// elsewhere". Superusers get ErrCrossTenant instead, which names the
// real condition.
func (r *Repo) Get(ctx context.Context, recordType, recordID string) (*record.Record, error) {
	orgID, ok := r.mgr.CurrentOrgID(ctx)
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", recordType, recordID, bulkhead.ErrMissingTenant)
	}
	rec, err := r.mgr.Store().GetRecord(ctx, recordType, recordID)
	if err != nil {
		return nil, err
	}
	if rec.OrgID != orgID {
		return nil, r.deny(ctx, rec, "cross-tenant read blocked")
	}
	return rec, nil
}

// Create persists a new record under the active organization. A record
// with no owner inherits the current organization; a record that names a
// foreign organization is refused. The unscoped accessor exists for the
// rare caller that legitimately writes across tenants.
func (r *Repo) Create(ctx context.Context, rec *record.Record) error {
	orgID, ok := r.mgr.CurrentOrgID(ctx)
	if !ok {
		return fmt.Errorf("create %s: %w", rec.Type, bulkhead.ErrMissingTenant)
	}
	if rec.OrgID.IsNil() {
		rec.OrgID = orgID
	} else if rec.OrgID != orgID {
		return r.deny(ctx, rec, "cross-tenant create blocked")
	}
	stampNew(rec)
	return r.mgr.Store().InsertRecord(ctx, rec)
}

// Update persists changes to a record the active organization owns.
// Ownership is immutable: an update that tries to move the record to
// another organization fails with ErrImmutableOrganization.
func (r *Repo) Update(ctx context.Context, rec *record.Record) error {
	orgID, ok := r.mgr.CurrentOrgID(ctx)
	if !ok {
		return fmt.Errorf("update %s/%s: %w", rec.Type, rec.ID, bulkhead.ErrMissingTenant)
	}
	existing, err := r.mgr.Store().GetRecord(ctx, rec.Type, rec.ID)
	if err != nil {
		return err
	}
	if existing.OrgID != orgID {
		return r.deny(ctx, existing, "cross-tenant update blocked")
	}
	if !rec.OrgID.IsNil() && rec.OrgID != existing.OrgID {
		return fmt.Errorf("update %s/%s: %w", rec.Type, rec.ID, bulkhead.ErrImmutableOrganization)
	}
	rec.OrgID = existing.OrgID
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	return r.mgr.Store().UpdateRecord(ctx, rec)
}

// Delete removes a record the active organization owns. Like Get, a
// foreign record is indistinguishable from a missing one.
func (r *Repo) Delete(ctx context.Context, recordType, recordID string) error {
	orgID, ok := r.mgr.CurrentOrgID(ctx)
	if !ok {
		return fmt.Errorf("delete %s/%s: %w", recordType, recordID, bulkhead.ErrMissingTenant)
	}
	existing, err := r.mgr.Store().GetRecord(ctx, recordType, recordID)
	if err != nil {
		return err
	}
	if existing.OrgID != orgID {
		return r.deny(ctx, existing, "cross-tenant delete blocked")
	}
	return r.mgr.Store().DeleteRecord(ctx, recordType, recordID)
}

// deny records the violation and picks the error the caller is allowed
// to see.
func (r *Repo) deny(ctx context.Context, rec *record.Record, reason string) error {
	r.mgr.ReportViolation(ctx, rec.OrgID, rec.Type, rec.ID, audit.OutcomeBlocked, reason)
	if privileged(ctx) {
		return fmt.Errorf("%s/%s owned by %s: %w", rec.Type, rec.ID, rec.OrgID, bulkhead.ErrCrossTenant)
	}
	return fmt.Errorf("%s/%s: %w", rec.Type, rec.ID, bulkhead.ErrNotFound)
}

func privileged(ctx context.Context) bool {
	if bulkhead.IsAdmin(ctx) {
		return true
	}
	actor, ok := bulkhead.ActorFrom(ctx)
	return ok && actor.Superuser
}

func stampNew(rec *record.Record) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}

// IsNotFound reports whether err is the scoped layer's not-found result,
// covering both genuinely missing records and foreign records hidden
// from unprivileged callers.
func IsNotFound(err error) bool {
	return errors.Is(err, bulkhead.ErrNotFound)
}
