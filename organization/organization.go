// Package organization defines the Organization entity and its store
// interface. An organization is the isolation boundary: one customer's
// data partition.
package organization

import (
	"time"

	"github.com/xraph/bulkhead/id"
)

// Organization is the identity unit of tenancy.
type Organization struct {
	ID        id.OrgID       `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Slug      string         `json:"slug" db:"slug"`
	Active    bool           `json:"active" db:"active"`
	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing organizations.
type ListFilter struct {
	Active *bool  `json:"active,omitempty"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
