package bulkhead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/hook"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/store"
)

// Manager is the central tenancy engine. It resolves the active
// organization for a unit of execution, installs and overrides tenant
// scope, validates organizations, and records isolation violations.
//
// Boundary adapters are the only callers of SetCurrent; application code
// reads through CurrentOrganization and overrides through
// WithOrganization.
type Manager struct {
	store  store.Store
	cache  Cache
	hooks  *hook.Registry
	logger *slog.Logger
	config Config
}

// NewManager creates a new Manager with the given options.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		return nil, errors.New("bulkhead: store is required")
	}
	if m.hooks == nil {
		m.hooks = hook.NewRegistry(m.logger)
	}
	return m, nil
}

// Store returns the underlying composite store.
func (m *Manager) Store() store.Store { return m.store }

// Hooks returns the hook registry.
func (m *Manager) Hooks() *hook.Registry { return m.hooks }

// Logger returns the structured logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Config returns the manager configuration.
func (m *Manager) Config() Config { return m.config }

// Start performs any startup initialization.
func (m *Manager) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown and notifies shutdown hooks.
func (m *Manager) Stop(ctx context.Context) error {
	m.hooks.EmitShutdown(ctx)
	return nil
}

// CurrentOrgID resolves the active organization id for this unit of
// execution. Resolution order:
//
//  1. the scope carried by ctx (override or boundary-established),
//  2. the sole active membership of the ctx actor (when the fallback is
//     enabled and exactly one active membership exists),
//  3. not resolvable.
//
// It never guesses among multiple memberships and never errors; callers
// that must fail on an unresolvable organization use CurrentOrganization.
func (m *Manager) CurrentOrgID(ctx context.Context) (id.OrgID, bool) {
	s := scopeFromContext(ctx)
	if !s.orgID.IsNil() {
		return s.orgID, true
	}

	if !m.config.membershipFallback() {
		return id.Nil, false
	}
	actor, ok := ActorFrom(ctx)
	if !ok || actor.Kind != ActorUser {
		return id.Nil, false
	}
	return m.soleActiveOrg(ctx, actor.ID)
}

// CurrentOrganization resolves and loads the active organization.
// An unresolvable organization returns ErrMissingTenant; a resolved id
// that does not exist or is inactive is fatal for this unit of work.
func (m *Manager) CurrentOrganization(ctx context.Context) (*organization.Organization, error) {
	orgID, ok := m.CurrentOrgID(ctx)
	if !ok {
		return nil, ErrMissingTenant
	}
	return m.lookupOrg(ctx, orgID)
}

// SetCurrent validates the organization and returns a derived context
// with the active context installed on both propagation mechanisms.
// Boundary adapters are its only sanctioned callers; teardown is
// structural (stop using the derived context) plus ClearCurrent for the
// lifecycle hook.
func (m *Manager) SetCurrent(ctx context.Context, actor Actor, orgID id.OrgID) (context.Context, error) {
	if _, err := m.lookupOrg(ctx, orgID); err != nil {
		return nil, err
	}

	derived := installScope(ctx, ActiveContext{Actor: actor, OrgID: orgID})
	m.hooks.EmitContextEstablished(derived, actor.ID, orgID)
	return derived, nil
}

// ClearCurrent notifies lifecycle hooks that a unit of execution tore
// its context down. Adapters call it in a defer so it runs on every exit
// path, including panic and cancellation.
func (m *Manager) ClearCurrent(ctx context.Context) {
	ac, ok := ActiveFrom(ctx)
	if !ok {
		return
	}
	m.hooks.EmitContextCleared(ctx, ac.Actor.ID, ac.OrgID)
}

// WithOrganization runs fn with the active organization temporarily
// overridden. The override is visible only to fn and its descendants;
// the caller's context is untouched, so restoration holds on normal
// return, early return, and panic alike. This is the only sanctioned way
// application code acts as a different tenant.
func (m *Manager) WithOrganization(ctx context.Context, orgID id.OrgID, fn func(ctx context.Context) error) error {
	derived, tok, err := m.Override(ctx, orgID)
	if err != nil {
		return err
	}
	defer tok.Restore() //nolint:errcheck // restoration of a fresh token cannot fail

	return fn(derived)
}

// Override validates the organization and returns a derived context with
// the override installed, plus a single-use token that restores the
// prior context. Prefer WithOrganization; Override exists for
// callback-shaped code that cannot wrap its body in a closure.
func (m *Manager) Override(ctx context.Context, orgID id.OrgID) (context.Context, *Token, error) {
	if _, err := m.lookupOrg(ctx, orgID); err != nil {
		return nil, nil, err
	}

	actor, _ := ActorFrom(ctx)
	derived := installScope(ctx, ActiveContext{Actor: actor, OrgID: orgID})
	m.hooks.EmitContextEstablished(derived, actor.ID, orgID)

	return derived, &Token{mgr: m, prev: ctx, derived: derived}, nil
}

// ReportViolation persists an audit entry for a detected cross-tenant
// access, notifies violation hooks, and logs it. It never fails the
// caller: a violation that cannot be persisted is still logged and the
// access is still refused.
func (m *Manager) ReportViolation(ctx context.Context, attempted id.OrgID, resourceType, resourceID string, outcome audit.Outcome, reason string) *audit.Entry {
	actor, _ := ActorFrom(ctx)
	activeOrg, _ := m.CurrentOrgID(ctx)

	entry := &audit.Entry{
		ID:             id.NewAuditID(),
		ActorKind:      string(actor.Kind),
		ActorID:        actor.ID,
		ActiveOrgID:    activeOrg,
		AttemptedOrgID: attempted,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Outcome:        outcome,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	}

	if err := m.store.CreateAuditEntry(ctx, entry); err != nil {
		m.logger.Error("failed to persist audit entry",
			slog.String("actor_id", entry.ActorID),
			slog.String("attempted_org", attempted.String()),
			slog.String("error", err.Error()),
		)
	}
	m.hooks.EmitViolationDetected(ctx, entry)

	m.logger.Warn("cross-tenant access violation",
		slog.String("actor_kind", entry.ActorKind),
		slog.String("actor_id", entry.ActorID),
		slog.String("active_org", activeOrg.String()),
		slog.String("attempted_org", attempted.String()),
		slog.String("resource_type", resourceType),
		slog.String("resource_id", resourceID),
		slog.String("outcome", string(outcome)),
	)
	return entry
}

// InvalidateUser drops the cached membership resolution for a user.
// Membership writes must call it so resolution never serves stale orgs.
func (m *Manager) InvalidateUser(ctx context.Context, userID string) {
	if m.cache != nil {
		m.cache.Invalidate(ctx, userID)
	}
}

// lookupOrg loads and validates an organization by id.
func (m *Manager) lookupOrg(ctx context.Context, orgID id.OrgID) (*organization.Organization, error) {
	if orgID.IsNil() {
		return nil, ErrMissingTenant
	}
	org, err := m.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrganization, orgID)
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: %s", ErrInactiveOrganization, orgID)
	}
	return org, nil
}

// soleActiveOrg resolves a user's single active membership, consulting
// the cache first. Zero or multiple active memberships resolve to
// nothing: resolution fails closed rather than guessing.
func (m *Manager) soleActiveOrg(ctx context.Context, userID string) (id.OrgID, bool) {
	if m.cache != nil {
		if orgID, ok := m.cache.Get(ctx, userID); ok {
			return orgID, true
		}
	}

	orgs, err := m.store.ListActiveOrgsForUser(ctx, userID)
	if err != nil {
		m.logger.Error("membership resolution failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return id.Nil, false
	}
	switch len(orgs) {
	case 1:
		if m.cache != nil {
			m.cache.Set(ctx, userID, orgs[0])
		}
		return orgs[0], true
	case 0:
		return id.Nil, false
	default:
		m.logger.Debug("ambiguous membership, explicit selection required",
			slog.String("user_id", userID),
			slog.Int("active_memberships", len(orgs)),
		)
		return id.Nil, false
	}
}

// Token restores the context that was in effect before an Override.
// Tokens are single-use and must not cross unit-of-execution boundaries.
type Token struct {
	mgr     *Manager
	prev    context.Context //nolint:containedctx // the token's whole purpose is to carry the prior context
	derived context.Context //nolint:containedctx
	mu      sync.Mutex
	used    bool
}

// Restore returns the context captured when the override was installed
// and notifies lifecycle hooks. A second call returns ErrTokenUsed.
func (t *Token) Restore() (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.used {
		return nil, ErrTokenUsed
	}
	t.used = true

	t.mgr.ClearCurrent(t.derived)
	return t.prev, nil
}
