package organization

import (
	"context"

	"github.com/xraph/bulkhead/id"
)

// Store defines persistence operations for organizations.
// There is deliberately no delete operation: an organization that is
// still referenced by scoped records is deactivated, never removed.
type Store interface {
	// CreateOrganization persists a new organization.
	CreateOrganization(ctx context.Context, o *Organization) error

	// GetOrganization retrieves an organization by ID.
	GetOrganization(ctx context.Context, orgID id.OrgID) (*Organization, error)

	// GetOrganizationBySlug retrieves an organization by slug.
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)

	// UpdateOrganization persists changes to an organization's display
	// metadata. The active flag is managed by SetOrganizationActive.
	UpdateOrganization(ctx context.Context, o *Organization) error

	// SetOrganizationActive flips the active flag.
	SetOrganizationActive(ctx context.Context, orgID id.OrgID, active bool) error

	// ListOrganizations returns organizations matching the filter.
	ListOrganizations(ctx context.Context, filter *ListFilter) ([]*Organization, error)

	// CountOrganizations returns the number of organizations matching the filter.
	CountOrganizations(ctx context.Context, filter *ListFilter) (int64, error)
}
