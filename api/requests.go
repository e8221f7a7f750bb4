package api

import "encoding/json"

// ──────────────────────────────────────────────────
// Organization requests
// ──────────────────────────────────────────────────

// CreateOrganizationRequest is the body for creating an organization.
type CreateOrganizationRequest struct {
	Name     string         `json:"name" description:"Organization name"`
	Slug     string         `json:"slug" description:"URL-safe slug, unique across the deployment"`
	Metadata map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// UpdateOrganizationRequest is the body for updating an organization.
type UpdateOrganizationRequest struct {
	Name     string         `json:"name,omitempty" description:"Organization name"`
	Metadata map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetOrganizationRequest is the path parameter for getting an organization.
type GetOrganizationRequest struct {
	OrgID string `path:"orgId" description:"Organization ID"`
}

// ListOrganizationsRequest holds query parameters for listing organizations.
type ListOrganizationsRequest struct {
	Active *bool  `query:"active" description:"Filter by active state"`
	Search string `query:"search" description:"Search by name or slug"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Membership requests
// ──────────────────────────────────────────────────

// InviteMemberRequest is the body for inviting a user into an organization.
type InviteMemberRequest struct {
	UserID string `json:"user_id" description:"User identifier"`
	Role   string `json:"role,omitempty" description:"Role label within the organization"`
}

// UpdateMembershipStatusRequest is the body for a membership status change.
type UpdateMembershipStatusRequest struct {
	Status string `json:"status" description:"New status (invited, active, suspended)"`
}

// GetMembershipRequest is the path parameter for a single membership.
type GetMembershipRequest struct {
	MembershipID string `path:"membershipId" description:"Membership ID"`
}

// ListMembershipsRequest holds query parameters for listing memberships.
type ListMembershipsRequest struct {
	UserID string `query:"user_id" description:"Filter by user"`
	Status string `query:"status" description:"Filter by status"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditEntriesRequest holds query parameters for querying the audit log.
type ListAuditEntriesRequest struct {
	ActorID        string `query:"actor_id" description:"Filter by acting identity"`
	AttemptedOrgID string `query:"attempted_org_id" description:"Filter by the organization that was reached for"`
	ResourceType   string `query:"resource_type" description:"Filter by resource type"`
	Outcome        string `query:"outcome" description:"Filter by outcome (blocked, stripped, denied)"`
	After          string `query:"after" description:"RFC3339 lower bound"`
	Before         string `query:"before" description:"RFC3339 upper bound"`
	Limit          int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset         int    `query:"offset" description:"Results to skip"`
}

// GetAuditEntryRequest is the path parameter for a single audit entry.
type GetAuditEntryRequest struct {
	AuditID string `path:"auditId" description:"Audit entry ID"`
}

// ──────────────────────────────────────────────────
// Record requests
// ──────────────────────────────────────────────────

// CreateRecordRequest is the body for creating a scoped record. The
// owning organization is always the caller's active one.
type CreateRecordRequest struct {
	Type string          `json:"type" description:"Record type (e.g. invoice)"`
	ID   string          `json:"id" description:"Record identifier, unique within its type"`
	Data json.RawMessage `json:"data,omitempty" description:"Opaque JSON payload"`
}

// UpdateRecordRequest is the body for updating a scoped record.
type UpdateRecordRequest struct {
	Data json.RawMessage `json:"data" description:"Opaque JSON payload"`
}

// GetRecordRequest holds the path parameters for a single record.
type GetRecordRequest struct {
	Type string `path:"type" description:"Record type"`
	ID   string `path:"id" description:"Record identifier"`
}

// ListRecordsRequest is the path parameter for listing records of a type.
type ListRecordsRequest struct {
	Type string `path:"type" description:"Record type"`
}
