package audit

import (
	"context"
	"time"

	"github.com/xraph/bulkhead/id"
)

// Store defines persistence operations for the audit log.
type Store interface {
	// CreateAuditEntry persists a new audit entry.
	CreateAuditEntry(ctx context.Context, e *Entry) error

	// GetAuditEntry retrieves an audit entry by ID.
	GetAuditEntry(ctx context.Context, auditID id.AuditID) (*Entry, error)

	// ListAuditEntries returns audit entries matching the filter.
	ListAuditEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountAuditEntries returns the number of entries matching the filter.
	CountAuditEntries(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeAuditEntries removes audit entries older than the given time.
	PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error)
}
