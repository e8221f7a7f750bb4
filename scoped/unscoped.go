package scoped

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/record"
)

// UnscopedRepo bypasses organization filtering. It exists for code that
// legitimately works across tenants: migrations, admin tooling, billing
// rollups. It is not exempt from structural invariants: ownership is
// still assigned explicitly and still immutable.
type UnscopedRepo struct {
	mgr *bulkhead.Manager
}

// List returns every tenant's records of the given type.
func (u *UnscopedRepo) List(ctx context.Context, recordType string) ([]*record.Record, error) {
	return u.mgr.Store().ListRecords(ctx, recordType)
}

// ListByOrg returns a named organization's records regardless of the
// active context.
func (u *UnscopedRepo) ListByOrg(ctx context.Context, recordType string, orgID id.OrgID) ([]*record.Record, error) {
	return u.mgr.Store().ListRecordsByOrg(ctx, recordType, orgID)
}

// Get retrieves a record by type and id without an ownership check.
func (u *UnscopedRepo) Get(ctx context.Context, recordType, recordID string) (*record.Record, error) {
	return u.mgr.Store().GetRecord(ctx, recordType, recordID)
}

// Create persists a record under the organization it names. Unscoped
// writes never inherit an owner implicitly; an unowned record is a bug
// at the call site, not something to paper over.
func (u *UnscopedRepo) Create(ctx context.Context, rec *record.Record) error {
	if rec.OrgID.IsNil() {
		return fmt.Errorf("unscoped create %s: record has no owning organization: %w", rec.Type, bulkhead.ErrMissingTenant)
	}
	stampNew(rec)
	return u.mgr.Store().InsertRecord(ctx, rec)
}

// Update persists changes to a record. Ownership stays immutable even
// here.
func (u *UnscopedRepo) Update(ctx context.Context, rec *record.Record) error {
	existing, err := u.mgr.Store().GetRecord(ctx, rec.Type, rec.ID)
	if err != nil {
		return err
	}
	if !rec.OrgID.IsNil() && rec.OrgID != existing.OrgID {
		return fmt.Errorf("update %s/%s: %w", rec.Type, rec.ID, bulkhead.ErrImmutableOrganization)
	}
	rec.OrgID = existing.OrgID
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	return u.mgr.Store().UpdateRecord(ctx, rec)
}

// Delete removes a record by type and id without an ownership check.
func (u *UnscopedRepo) Delete(ctx context.Context, recordType, recordID string) error {
	if _, err := u.mgr.Store().GetRecord(ctx, recordType, recordID); err != nil {
		return err
	}
	return u.mgr.Store().DeleteRecord(ctx, recordType, recordID)
}
