package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/membership"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/record"
)

// ──────────────────────────────────────────────────
// Organization model
// ──────────────────────────────────────────────────

type organizationModel struct {
	grove.BaseModel `grove:"table:bulkhead_organizations"`
	ID              string         `grove:"id,pk"`
	Name            string         `grove:"name,notnull"`
	Slug            string         `grove:"slug,notnull"`
	Active          bool           `grove:"active,notnull"`
	Metadata        map[string]any `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
	UpdatedAt       time.Time      `grove:"updated_at,notnull"`
}

func organizationToModel(o *organization.Organization) *organizationModel {
	return &organizationModel{
		ID:        o.ID.String(),
		Name:      o.Name,
		Slug:      o.Slug,
		Active:    o.Active,
		Metadata:  o.Metadata,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func organizationFromModel(m *organizationModel) *organization.Organization {
	oid, _ := id.ParseOrgID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &organization.Organization{
		ID:        oid,
		Name:      m.Name,
		Slug:      m.Slug,
		Active:    m.Active,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Membership model
// ──────────────────────────────────────────────────

type membershipModel struct {
	grove.BaseModel `grove:"table:bulkhead_memberships"`
	ID              string    `grove:"id,pk"`
	OrgID           string    `grove:"org_id,notnull"`
	UserID          string    `grove:"user_id,notnull"`
	Status          string    `grove:"status,notnull"`
	Role            string    `grove:"role"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func membershipToModel(m *membership.Membership) *membershipModel {
	return &membershipModel{
		ID:        m.ID.String(),
		OrgID:     m.OrgID.String(),
		UserID:    m.UserID,
		Status:    string(m.Status),
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func membershipFromModel(m *membershipModel) *membership.Membership {
	mid, _ := id.ParseMembershipID(m.ID) //nolint:errcheck // stored IDs are always valid
	oid, _ := id.ParseOrgID(m.OrgID)     //nolint:errcheck // stored IDs are always valid
	return &membership.Membership{
		ID:        mid,
		OrgID:     oid,
		UserID:    m.UserID,
		Status:    membership.Status(m.Status),
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit entry model
// ──────────────────────────────────────────────────

type auditEntryModel struct {
	grove.BaseModel `grove:"table:bulkhead_audit_log"`
	ID              string    `grove:"id,pk"`
	ActorKind       string    `grove:"actor_kind,notnull"`
	ActorID         string    `grove:"actor_id,notnull"`
	ActiveOrgID     string    `grove:"active_org_id"`
	AttemptedOrgID  string    `grove:"attempted_org_id"`
	ResourceType    string    `grove:"resource_type"`
	ResourceID      string    `grove:"resource_id"`
	Outcome         string    `grove:"outcome,notnull"`
	Reason          string    `grove:"reason"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func auditEntryToModel(e *audit.Entry) *auditEntryModel {
	return &auditEntryModel{
		ID:             e.ID.String(),
		ActorKind:      e.ActorKind,
		ActorID:        e.ActorID,
		ActiveOrgID:    orgString(e.ActiveOrgID),
		AttemptedOrgID: orgString(e.AttemptedOrgID),
		ResourceType:   e.ResourceType,
		ResourceID:     e.ResourceID,
		Outcome:        string(e.Outcome),
		Reason:         e.Reason,
		CreatedAt:      e.CreatedAt,
	}
}

func auditEntryFromModel(m *auditEntryModel) *audit.Entry {
	aid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	e := &audit.Entry{
		ID:           aid,
		ActorKind:    m.ActorKind,
		ActorID:      m.ActorID,
		ResourceType: m.ResourceType,
		ResourceID:   m.ResourceID,
		Outcome:      audit.Outcome(m.Outcome),
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
	}
	if m.ActiveOrgID != "" {
		e.ActiveOrgID, _ = id.ParseOrgID(m.ActiveOrgID) //nolint:errcheck // stored IDs are always valid
	}
	if m.AttemptedOrgID != "" {
		e.AttemptedOrgID, _ = id.ParseOrgID(m.AttemptedOrgID) //nolint:errcheck // stored IDs are always valid
	}
	return e
}

// orgString renders an org id for storage, empty when nil.
func orgString(orgID id.OrgID) string {
	if orgID.IsNil() {
		return ""
	}
	return orgID.String()
}

// ──────────────────────────────────────────────────
// Record model
// ──────────────────────────────────────────────────

type recordModel struct {
	grove.BaseModel `grove:"table:bulkhead_records"`
	Type            string          `grove:"type,pk"`
	ID              string          `grove:"id,pk"`
	OrgID           string          `grove:"org_id,notnull"`
	Data            json.RawMessage `grove:"data,type:jsonb"`
	CreatedAt       time.Time       `grove:"created_at,notnull"`
	UpdatedAt       time.Time       `grove:"updated_at,notnull"`
}

func recordToModel(r *record.Record) *recordModel {
	return &recordModel{
		Type:      r.Type,
		ID:        r.ID,
		OrgID:     r.OrgID.String(),
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func recordFromModel(m *recordModel) *record.Record {
	oid, _ := id.ParseOrgID(m.OrgID) //nolint:errcheck // stored IDs are always valid
	return &record.Record{
		Type:      m.Type,
		ID:        m.ID,
		OrgID:     oid,
		Data:      m.Data,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
