// Package audit defines the cross-tenant access audit log Entry entity.
package audit

import (
	"time"

	"github.com/xraph/bulkhead/id"
)

// Outcome records how a detected violation was handled.
type Outcome string

const (
	// OutcomeBlocked means the operation was refused before any data left
	// the boundary (the secure lookup path).
	OutcomeBlocked Outcome = "blocked"

	// OutcomeStripped means the post-hoc sweep caught a foreign-tenant
	// value in an outgoing payload and the response was withheld.
	OutcomeStripped Outcome = "stripped"

	// OutcomeDenied means a boundary adapter refused to establish context.
	OutcomeDenied Outcome = "denied"
)

// Entry is a single tenant-isolation audit record.
type Entry struct {
	ID             id.AuditID `json:"id" db:"id"`
	ActorKind      string     `json:"actor_kind" db:"actor_kind"`
	ActorID        string     `json:"actor_id" db:"actor_id"`
	ActiveOrgID    id.OrgID   `json:"active_org_id" db:"active_org_id"`
	AttemptedOrgID id.OrgID   `json:"attempted_org_id" db:"attempted_org_id"`
	ResourceType   string     `json:"resource_type" db:"resource_type"`
	ResourceID     string     `json:"resource_id" db:"resource_id"`
	Outcome        Outcome    `json:"outcome" db:"outcome"`
	Reason         string     `json:"reason,omitempty" db:"reason"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying audit entries.
type QueryFilter struct {
	ActorID        string     `json:"actor_id,omitempty"`
	ActiveOrgID    *id.OrgID  `json:"active_org_id,omitempty"`
	AttemptedOrgID *id.OrgID  `json:"attempted_org_id,omitempty"`
	ResourceType   string     `json:"resource_type,omitempty"`
	Outcome        Outcome    `json:"outcome,omitempty"`
	After          *time.Time `json:"after,omitempty"`
	Before         *time.Time `json:"before,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
}
