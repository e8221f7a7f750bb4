package bulkhead

import (
	"context"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead/id"
)

type tenantScope struct {
	actor Actor
	orgID id.OrgID
}

// scopeFromContext resolves the tenant scope visible to this unit of
// execution. The forge.Scope carried by ctx wins; the standalone active
// context is the fallback. Boundary adapters install both, so the two
// mechanisms agree on any single code path.
func scopeFromContext(ctx context.Context) tenantScope {
	if s, ok := forge.ScopeFrom(ctx); ok {
		if orgID, err := id.ParseOrgID(s.OrgID()); err == nil {
			actor, _ := ActorFrom(ctx)
			return tenantScope{actor: actor, orgID: orgID}
		}
	}
	if ac, ok := ActiveFrom(ctx); ok {
		return tenantScope{actor: ac.Actor, orgID: ac.OrgID}
	}
	return tenantScope{}
}

// installScope derives a context carrying the active context on both
// propagation mechanisms: the bulkhead context key and the forge scope.
func installScope(ctx context.Context, ac ActiveContext) context.Context {
	ctx = WithActiveContext(ctx, ac)
	if !ac.OrgID.IsNil() {
		ctx = forge.WithScope(ctx, forge.NewOrgScope("", ac.OrgID.String()))
	}
	return ctx
}
