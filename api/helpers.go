package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead"
)

// mapError maps domain errors to Forge HTTP errors. Cross-tenant
// denials already arrive shaped by the scoped layer, so ErrNotFound
// here covers both genuine misses and hidden foreign resources.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bulkhead.ErrNotFound) || errors.Is(err, bulkhead.ErrUnknownOrganization) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, bulkhead.ErrMissingTenant) ||
		errors.Is(err, bulkhead.ErrCrossTenant) ||
		errors.Is(err, bulkhead.ErrInactiveOrganization) {
		return forge.Forbidden(err.Error())
	}
	if errors.Is(err, bulkhead.ErrDuplicateMembership) ||
		errors.Is(err, bulkhead.ErrImmutableOrganization) {
		return forge.BadRequest(err.Error())
	}
	return err
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
