package bulkhead

import (
	"context"

	"github.com/xraph/bulkhead/id"
)

// Cache provides caching for sole-membership resolution. Keys are user
// identities; values are the single active organization resolved for
// that user. Membership writes must invalidate the affected user.
type Cache interface {
	// Get returns the cached organization for a user, if available.
	Get(ctx context.Context, userID string) (id.OrgID, bool)

	// Set stores a resolved organization for a user.
	Set(ctx context.Context, userID string, orgID id.OrgID)

	// Invalidate removes the cached resolution for a user.
	Invalidate(ctx context.Context, userID string)
}
