// Package record defines the scoped entity envelope: a persisted record
// tagged with its owning organization. Business-domain data rides in the
// JSON payload; bulkhead cares only about the ownership tag.
package record

import (
	"encoding/json"
	"time"

	"github.com/xraph/bulkhead/id"
)

// Record is a tenant-owned persisted entity. It satisfies the root
// package's Owned and Describable interfaces, so it participates in
// scoped access and post-hoc interception.
type Record struct {
	Type      string          `json:"type" db:"type"`
	ID        string          `json:"id" db:"id"`
	OrgID     id.OrgID        `json:"org_id" db:"org_id"`
	Data      json.RawMessage `json:"data,omitempty" db:"data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// OwningOrg returns the organization that owns this record.
func (r *Record) OwningOrg() id.OrgID { return r.OrgID }

// ResourceType returns the record's entity type for audit entries.
func (r *Record) ResourceType() string { return r.Type }

// ResourceID returns the record's identifier for audit entries.
func (r *Record) ResourceID() string { return r.ID }

// Decode unmarshals the record payload into v.
func (r *Record) Decode(v any) error { return json.Unmarshal(r.Data, v) }

// Encode marshals v into the record payload.
func (r *Record) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}
