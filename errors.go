package bulkhead

import "errors"

var (
	// ErrMissingTenant is returned when an operation requires an active
	// organization and none is resolvable. Writes through the scoped layer
	// fail with this error rather than persisting an unowned record.
	ErrMissingTenant = errors.New("bulkhead: no tenant context")

	// ErrUnknownOrganization is returned when a referenced organization
	// does not exist. Fatal for the current unit of work; never retried.
	ErrUnknownOrganization = errors.New("bulkhead: unknown organization")

	// ErrInactiveOrganization is returned when a referenced organization
	// exists but has been deactivated.
	ErrInactiveOrganization = errors.New("bulkhead: organization is inactive")

	// ErrAmbiguousMembership is returned when a user holds multiple active
	// memberships and no organization was explicitly selected. Resolution
	// never guesses; an explicit selection is required.
	ErrAmbiguousMembership = errors.New("bulkhead: multiple active memberships, explicit selection required")

	// ErrCrossTenant is returned when an accessed resource belongs to a
	// different organization than the active context. Always audited;
	// unprivileged callers see ErrNotFound instead so that foreign data
	// existence is not confirmed.
	ErrCrossTenant = errors.New("bulkhead: cross-tenant access violation")

	// ErrNotFound is ordinary absence, indistinguishable from a
	// cross-tenant miss to unprivileged callers.
	ErrNotFound = errors.New("bulkhead: not found")

	// ErrImmutableOrganization is returned when a write attempts to move a
	// record to a different organization. Ownership is set once.
	ErrImmutableOrganization = errors.New("bulkhead: organization id is immutable")

	// ErrDuplicateMembership is returned when creating a second active
	// membership for the same (user, organization) pair.
	ErrDuplicateMembership = errors.New("bulkhead: active membership already exists")

	// ErrTokenUsed is returned when a context token is restored twice.
	// Tokens are single-use and bound to their unit of execution.
	ErrTokenUsed = errors.New("bulkhead: context token already used")
)
