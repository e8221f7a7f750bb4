package bulkhead

import (
	"context"

	"github.com/xraph/bulkhead/id"
)

type contextKey int

const (
	ctxKeyActive contextKey = iota
	ctxKeyAdmin
)

// WithActiveContext returns a context carrying the given active context.
// Use this for standalone mode (without Forge); boundary adapters call it
// through Manager.SetCurrent, which also installs the forge scope so both
// propagation mechanisms agree.
func WithActiveContext(ctx context.Context, ac ActiveContext) context.Context {
	return context.WithValue(ctx, ctxKeyActive, ac)
}

// ActiveFrom returns the active context installed on ctx.
// The second return is false when no boundary adapter has run.
func ActiveFrom(ctx context.Context) (ActiveContext, bool) {
	ac, ok := ctx.Value(ctxKeyActive).(ActiveContext)
	if !ok || ac.IsZero() {
		return ActiveContext{}, false
	}
	return ac, true
}

// ActorFrom returns the actor bound to ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	ac, ok := ActiveFrom(ctx)
	if !ok || ac.Actor.IsZero() {
		return Actor{}, false
	}
	return ac.Actor, true
}

// OrgFromContext returns the organization id carried by ctx, consulting
// the forge scope first and the standalone active context second. It is
// pure: no store lookup, no membership fallback.
func OrgFromContext(ctx context.Context) (id.OrgID, bool) {
	s := scopeFromContext(ctx)
	if s.orgID.IsNil() {
		return id.Nil, false
	}
	return s.orgID, true
}

// WithAdmin marks ctx as an administrative path. The post-hoc interceptor
// skips payloads produced under an admin context; the unscoped accessor
// is the sanctioned way such paths read cross-tenant data.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyAdmin, true)
}

// IsAdmin reports whether ctx was marked administrative via WithAdmin.
func IsAdmin(ctx context.Context) bool {
	v, ok := ctx.Value(ctxKeyAdmin).(bool)
	return ok && v
}
