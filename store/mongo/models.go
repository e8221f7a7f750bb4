package mongo

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
	ID              string         `grove:"id,pk"      bson:"_id"`
	Name            string         `grove:"name"       bson:"name"`
	Slug            string         `grove:"slug"       bson:"slug"`
	Active          bool           `grove:"active"     bson:"active"`
	Metadata        map[string]any `grove:"metadata"   bson:"metadata,omitempty"`
	CreatedAt       time.Time      `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time      `grove:"updated_at" bson:"updated_at"`
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
	ID              string    `grove:"id,pk"      bson:"_id"`
	OrgID           string    `grove:"org_id"     bson:"org_id"`
	UserID          string    `grove:"user_id"    bson:"user_id"`
	Status          string    `grove:"status"     bson:"status"`
	Role            string    `grove:"role"       bson:"role"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
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
	ID              string    `grove:"id,pk"            bson:"_id"`
	ActorKind       string    `grove:"actor_kind"       bson:"actor_kind"`
	ActorID         string    `grove:"actor_id"         bson:"actor_id"`
	ActiveOrgID     string    `grove:"active_org_id"    bson:"active_org_id,omitempty"`
	AttemptedOrgID  string    `grove:"attempted_org_id" bson:"attempted_org_id,omitempty"`
	ResourceType    string    `grove:"resource_type"    bson:"resource_type,omitempty"`
	ResourceID      string    `grove:"resource_id"      bson:"resource_id,omitempty"`
	Outcome         string    `grove:"outcome"          bson:"outcome"`
	Reason          string    `grove:"reason"           bson:"reason,omitempty"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
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

// recordModel uses "type/id" as the document _id so the composite key
// stays unique without a separate index.
type recordModel struct {
	grove.BaseModel `grove:"table:bulkhead_records"`
	Key             string    `grove:"key,pk"     bson:"_id"`
	Type            string    `grove:"type"       bson:"type"`
	ID              string    `grove:"id"         bson:"id"`
	OrgID           string    `grove:"org_id"     bson:"org_id"`
	Data            []byte    `grove:"data"       bson:"data,omitempty"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
}

func recordKey(recordType, recordID string) string {
	return recordType + "/" + recordID
}

func recordToModel(r *record.Record) *recordModel {
	return &recordModel{
		Key:       recordKey(r.Type, r.ID),
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
	r := &record.Record{
		Type:      m.Type,
		ID:        m.ID,
		OrgID:     oid,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Data) > 0 {
		r.Data = json.RawMessage(m.Data)
	}
	return r
}
