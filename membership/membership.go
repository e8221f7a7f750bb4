// Package membership defines the Membership entity: the join of a user
// identity to an organization with a status and role.
package membership

import (
	"time"

	"github.com/xraph/bulkhead/id"
)

// Status is the lifecycle state of a membership.
type Status string

const (
	// StatusInvited means the user was invited but has not accepted.
	StatusInvited Status = "invited"

	// StatusActive means the membership is in effect.
	StatusActive Status = "active"

	// StatusSuspended means the membership is temporarily revoked.
	StatusSuspended Status = "suspended"
)

// Membership binds a user to an organization.
// Invariant: at most one active membership per (user, organization) pair;
// stores enforce it with a partial unique index.
type Membership struct {
	ID        id.MembershipID `json:"id" db:"id"`
	OrgID     id.OrgID        `json:"org_id" db:"org_id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Status    Status          `json:"status" db:"status"`
	Role      string          `json:"role,omitempty" db:"role"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the membership is in effect.
func (m *Membership) IsActive() bool { return m.Status == StatusActive }

// ListFilter contains filters for listing memberships.
type ListFilter struct {
	OrgID  *id.OrgID `json:"org_id,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	Status Status    `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}
