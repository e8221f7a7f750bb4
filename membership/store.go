package membership

import (
	"context"

	"github.com/xraph/bulkhead/id"
)

// Store defines persistence operations for memberships.
type Store interface {
	// CreateMembership persists a new membership. Creating a second
	// active membership for the same (user, org) pair fails.
	CreateMembership(ctx context.Context, m *Membership) error

	// GetMembership retrieves a membership by ID.
	GetMembership(ctx context.Context, memberID id.MembershipID) (*Membership, error)

	// ListMemberships returns memberships matching the filter.
	ListMemberships(ctx context.Context, filter *ListFilter) ([]*Membership, error)

	// ListActiveOrgsForUser returns the organizations in which the user
	// holds an active membership. The manager resolves an implicit
	// current organization only when exactly one is returned.
	ListActiveOrgsForUser(ctx context.Context, userID string) ([]id.OrgID, error)

	// UpdateMembershipStatus transitions a membership's status.
	UpdateMembershipStatus(ctx context.Context, memberID id.MembershipID, status Status) error

	// DeleteMembership removes a membership by ID.
	DeleteMembership(ctx context.Context, memberID id.MembershipID) error

	// DeleteMembershipsByOrg removes all memberships for an organization.
	DeleteMembershipsByOrg(ctx context.Context, orgID id.OrgID) error
}
