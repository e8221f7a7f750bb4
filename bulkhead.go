// Package bulkhead provides multi-tenant isolation primitives for Go.
//
// Bulkhead guarantees that every unit of execution — an HTTP request, a
// socket connection, or a background job — operates against exactly one
// active organization and can never read or mutate another tenant's data,
// even when a call site forgets to filter. Tenant scope is carried on
// context.Context (bridged with forge.Scope when running inside Forge),
// the scoped data access layer filters by default and fails closed, and a
// post-hoc interceptor sweeps outgoing payloads for foreign-tenant leaks.
//
//	mgr, err := bulkhead.NewManager(
//	    bulkhead.WithStore(memStore),
//	)
//	err = mgr.WithOrganization(ctx, orgID, func(ctx context.Context) error {
//	    // everything in here sees exactly one tenant
//	    return nil
//	})
package bulkhead

import "github.com/xraph/bulkhead/id"

// ActorKind identifies the type of actor bound to a unit of execution.
type ActorKind string

const (
	// ActorUser represents a human user authenticated via a session.
	ActorUser ActorKind = "user"

	// ActorAPIKey represents an API key caller (e.g., from Keysmith).
	ActorAPIKey ActorKind = "api_key"

	// ActorService represents a service-to-service caller.
	ActorService ActorKind = "service"

	// ActorSystem represents internal machinery (job runners, sweepers).
	ActorSystem ActorKind = "system"
)

// Actor is the identity half of an active context.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`

	// Superuser marks an elevated-privilege actor. Superusers bypass the
	// post-hoc interceptor and may use the unscoped accessor; they never
	// widen the default scoped path.
	Superuser bool `json:"superuser,omitempty"`
}

// IsZero reports whether the actor is unset.
func (a Actor) IsZero() bool { return a.Kind == "" && a.ID == "" }

// ActiveContext is the (actor, organization) pair in effect for one unit
// of execution. It is a value object: installed by boundary adapters,
// copied into derived contexts, never shared by reference across units.
type ActiveContext struct {
	Actor Actor    `json:"actor"`
	OrgID id.OrgID `json:"org_id"`
}

// IsZero reports whether no context has been established.
func (ac ActiveContext) IsZero() bool { return ac.Actor.IsZero() && ac.OrgID.IsNil() }

// Owned is implemented by any value that carries an owning organization.
// The scoped data access layer and the interceptor treat every Owned
// value as a tenant-scoped entity.
type Owned interface {
	OwningOrg() id.OrgID
}

// Describable is optionally implemented by Owned values to enrich audit
// entries with a resource reference. Values that do not implement it are
// audited by their Go type name.
type Describable interface {
	ResourceType() string
	ResourceID() string
}
