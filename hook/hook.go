// Package hook defines the lifecycle hook system for Bulkhead.
// Hooks are notified of tenancy events (context established, context
// cleared, violation detected) and can react — alerting, metrics,
// forwarding to a SIEM, etc.
//
// Each lifecycle event is a separate interface so hooks opt in only
// to the events they care about.
package hook

import (
	"context"

	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ContextEstablished is called after a boundary adapter installs an
// active organization for a unit of execution.
type ContextEstablished interface {
	OnContextEstablished(ctx context.Context, actorID string, orgID id.OrgID) error
}

// ContextCleared is called when a unit of execution tears its context
// down. Overrides report the organization they were overriding with.
type ContextCleared interface {
	OnContextCleared(ctx context.Context, actorID string, orgID id.OrgID) error
}

// ViolationDetected is called when a cross-tenant access violation is
// caught, by either the scoped layer or the post-hoc interceptor. The
// entry has already been persisted to the audit store.
type ViolationDetected interface {
	OnViolationDetected(ctx context.Context, e *audit.Entry) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
