package api

// ContextResponse describes the caller's current tenancy context.
type ContextResponse struct {
	OrgID     string `json:"org_id" description:"Active organization ID"`
	Name      string `json:"name" description:"Active organization name"`
	Slug      string `json:"slug" description:"Active organization slug"`
	ActorKind string `json:"actor_kind,omitempty" description:"Acting identity kind"`
	ActorID   string `json:"actor_id,omitempty" description:"Acting identity"`
	Admin     bool   `json:"admin" description:"Whether the context is privileged"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
