package record

import (
	"context"

	"github.com/xraph/bulkhead/id"
)

// Store defines raw, tenant-unaware persistence for scoped records.
// Business code must not use it directly: the scoped layer narrows every
// read and write to the active organization, and the unscoped accessor
// is the explicit escape hatch. The raw store exists so backends stay
// simple and the isolation logic lives in exactly one place.
type Store interface {
	// InsertRecord persists a new record.
	InsertRecord(ctx context.Context, r *Record) error

	// GetRecord retrieves a record by type and id, across all tenants.
	GetRecord(ctx context.Context, recordType, recordID string) (*Record, error)

	// UpdateRecord persists changes to a record.
	UpdateRecord(ctx context.Context, r *Record) error

	// DeleteRecord removes a record by type and id.
	DeleteRecord(ctx context.Context, recordType, recordID string) error

	// ListRecordsByOrg returns all records of a type owned by an organization.
	ListRecordsByOrg(ctx context.Context, recordType string, orgID id.OrgID) ([]*Record, error)

	// ListRecords returns all records of a type across all tenants.
	ListRecords(ctx context.Context, recordType string) ([]*Record, error)
}
