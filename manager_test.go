package bulkhead_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/cache"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/membership"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/store/memory"
)

func newManager(t *testing.T, opts ...bulkhead.Option) (*bulkhead.Manager, *memory.Store) {
	t.Helper()
	s := memory.New()
	mgr, err := bulkhead.NewManager(append([]bulkhead.Option{bulkhead.WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return mgr, s
}

func createOrg(t *testing.T, s *memory.Store, name string) id.OrgID {
	t.Helper()
	o := &organization.Organization{ID: id.NewOrgID(), Name: name, Slug: name, Active: true}
	if err := s.CreateOrganization(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	return o.ID
}

func addActiveMembership(t *testing.T, s *memory.Store, orgID id.OrgID, userID string) id.MembershipID {
	t.Helper()
	m := &membership.Membership{
		ID:     id.NewMembershipID(),
		OrgID:  orgID,
		UserID: userID,
		Status: membership.StatusActive,
	}
	if err := s.CreateMembership(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m.ID
}

func userCtx(userID string) context.Context {
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: userID}
	return bulkhead.WithActiveContext(context.Background(), bulkhead.ActiveContext{Actor: actor})
}

// ──────────────────────────────────────────────────
// Context establishment
// ──────────────────────────────────────────────────

func TestSetCurrentEstablishesContext(t *testing.T) {
	mgr, s := newManager(t)
	orgID := createOrg(t, s, "org-1")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	base := context.Background()
	ctx, err := mgr.SetCurrent(base, actor, orgID)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := mgr.CurrentOrgID(ctx)
	if !ok || got != orgID {
		t.Fatalf("expected %s, got %s (ok=%v)", orgID, got, ok)
	}

	o, err := mgr.CurrentOrganization(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o.ID != orgID {
		t.Fatalf("resolved wrong organization: %s", o.ID)
	}

	// The caller's context must be untouched.
	if _, ok := mgr.CurrentOrgID(base); ok {
		t.Fatal("base context must not carry the established scope")
	}
}

func TestSetCurrentUnknownOrganization(t *testing.T) {
	mgr, _ := newManager(t)
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	_, err := mgr.SetCurrent(context.Background(), actor, id.NewOrgID())
	if !errors.Is(err, bulkhead.ErrUnknownOrganization) {
		t.Fatalf("expected ErrUnknownOrganization, got %v", err)
	}
}

func TestSetCurrentInactiveOrganization(t *testing.T) {
	mgr, s := newManager(t)
	orgID := createOrg(t, s, "org-1")
	if err := s.SetOrganizationActive(context.Background(), orgID, false); err != nil {
		t.Fatal(err)
	}
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	_, err := mgr.SetCurrent(context.Background(), actor, orgID)
	if !errors.Is(err, bulkhead.ErrInactiveOrganization) {
		t.Fatalf("expected ErrInactiveOrganization, got %v", err)
	}
}

func TestCurrentOrganizationMissingTenant(t *testing.T) {
	mgr, _ := newManager(t)

	_, err := mgr.CurrentOrganization(context.Background())
	if !errors.Is(err, bulkhead.ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Membership fallback
// ──────────────────────────────────────────────────

func TestSoleMembershipResolves(t *testing.T) {
	mgr, s := newManager(t)
	orgID := createOrg(t, s, "org-1")
	addActiveMembership(t, s, orgID, "user-1")

	got, ok := mgr.CurrentOrgID(userCtx("user-1"))
	if !ok || got != orgID {
		t.Fatalf("sole active membership must resolve, got %s (ok=%v)", got, ok)
	}
}

func TestAmbiguousMembershipFailsClosed(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	org2 := createOrg(t, s, "org-2")
	addActiveMembership(t, s, org1, "user-1")
	addActiveMembership(t, s, org2, "user-1")

	if _, ok := mgr.CurrentOrgID(userCtx("user-1")); ok {
		t.Fatal("resolution must never guess among multiple memberships")
	}
}

func TestInvitedMembershipDoesNotResolve(t *testing.T) {
	mgr, s := newManager(t)
	orgID := createOrg(t, s, "org-1")
	m := &membership.Membership{
		ID:     id.NewMembershipID(),
		OrgID:  orgID,
		UserID: "user-1",
		Status: membership.StatusInvited,
	}
	if err := s.CreateMembership(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	if _, ok := mgr.CurrentOrgID(userCtx("user-1")); ok {
		t.Fatal("an invited membership must not resolve")
	}
}

func TestMembershipFallbackDisabled(t *testing.T) {
	f := false
	cfg := bulkhead.DefaultConfig()
	cfg.MembershipFallback = &f
	mgr, s := newManager(t, bulkhead.WithConfig(cfg))
	orgID := createOrg(t, s, "org-1")
	addActiveMembership(t, s, orgID, "user-1")

	if _, ok := mgr.CurrentOrgID(userCtx("user-1")); ok {
		t.Fatal("fallback disabled: sole membership must not resolve")
	}
}

// ──────────────────────────────────────────────────
// Override and restoration
// ──────────────────────────────────────────────────

func TestWithOrganizationRestoresOnReturn(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	org2 := createOrg(t, s, "org-2")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	ctx, err := mgr.SetCurrent(context.Background(), actor, org1)
	if err != nil {
		t.Fatal(err)
	}

	err = mgr.WithOrganization(ctx, org2, func(inner context.Context) error {
		got, ok := mgr.CurrentOrgID(inner)
		if !ok || got != org2 {
			t.Fatalf("inside override expected %s, got %s", org2, got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := mgr.CurrentOrgID(ctx)
	if got != org1 {
		t.Fatalf("after override expected %s, got %s", org1, got)
	}
}

func TestWithOrganizationRestoresOnError(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	org2 := createOrg(t, s, "org-2")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	ctx, err := mgr.SetCurrent(context.Background(), actor, org1)
	if err != nil {
		t.Fatal(err)
	}

	sentinel := fmt.Errorf("boom")
	err = mgr.WithOrganization(ctx, org2, func(context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected fn error passthrough, got %v", err)
	}

	got, _ := mgr.CurrentOrgID(ctx)
	if got != org1 {
		t.Fatalf("error exit must leave the caller's scope, got %s", got)
	}
}

func TestWithOrganizationRestoresOnPanic(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	org2 := createOrg(t, s, "org-2")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	ctx, err := mgr.SetCurrent(context.Background(), actor, org1)
	if err != nil {
		t.Fatal(err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = mgr.WithOrganization(ctx, org2, func(context.Context) error { //nolint:errcheck // panics before returning
			panic("boom")
		})
	}()

	got, _ := mgr.CurrentOrgID(ctx)
	if got != org1 {
		t.Fatalf("panic exit must leave the caller's scope, got %s", got)
	}
}

func TestWithOrganizationUnknownOrg(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	ctx, err := mgr.SetCurrent(context.Background(), actor, org1)
	if err != nil {
		t.Fatal(err)
	}

	called := false
	err = mgr.WithOrganization(ctx, id.NewOrgID(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, bulkhead.ErrUnknownOrganization) {
		t.Fatalf("expected ErrUnknownOrganization, got %v", err)
	}
	if called {
		t.Fatal("fn must not run when the override target is invalid")
	}
}

func TestOverrideTokenSingleUse(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	org2 := createOrg(t, s, "org-2")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	ctx, err := mgr.SetCurrent(context.Background(), actor, org1)
	if err != nil {
		t.Fatal(err)
	}

	derived, tok, err := mgr.Override(ctx, org2)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := mgr.CurrentOrgID(derived); got != org2 {
		t.Fatalf("derived context expected %s, got %s", org2, got)
	}

	prev, err := tok.Restore()
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := mgr.CurrentOrgID(prev); got != org1 {
		t.Fatalf("restored context expected %s, got %s", org1, got)
	}

	if _, err := tok.Restore(); !errors.Is(err, bulkhead.ErrTokenUsed) {
		t.Fatalf("expected ErrTokenUsed on second restore, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

func TestConcurrentScopesDoNotInterfere(t *testing.T) {
	mgr, s := newManager(t)

	const goroutines = 16
	orgs := make([]id.OrgID, goroutines)
	for i := range orgs {
		orgs[i] = createOrg(t, s, fmt.Sprintf("org-%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: fmt.Sprintf("user-%d", i)}
			ctx, err := mgr.SetCurrent(context.Background(), actor, orgs[i])
			if err != nil {
				errs <- err
				return
			}
			for j := 0; j < 100; j++ {
				got, ok := mgr.CurrentOrgID(ctx)
				if !ok || got != orgs[i] {
					errs <- fmt.Errorf("goroutine %d saw %s, want %s", i, got, orgs[i])
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

// ──────────────────────────────────────────────────
// Violations and cache
// ──────────────────────────────────────────────────

func TestReportViolationPersists(t *testing.T) {
	mgr, s := newManager(t)
	org1 := createOrg(t, s, "org-1")
	org2 := createOrg(t, s, "org-2")
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}

	ctx, err := mgr.SetCurrent(context.Background(), actor, org1)
	if err != nil {
		t.Fatal(err)
	}

	entry := mgr.ReportViolation(ctx, org2, "invoice", "inv-9", audit.OutcomeBlocked, "test")
	if entry == nil {
		t.Fatal("expected an audit entry")
	}

	stored, err := s.GetAuditEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ActiveOrgID != org1 || stored.AttemptedOrgID != org2 {
		t.Fatalf("entry orgs wrong: active=%s attempted=%s", stored.ActiveOrgID, stored.AttemptedOrgID)
	}
	if stored.ActorID != "user-1" || stored.Outcome != audit.OutcomeBlocked {
		t.Fatalf("entry identity wrong: %+v", stored)
	}
}

func TestInvalidateUserDropsCachedResolution(t *testing.T) {
	c := cache.NewMemory()
	mgr, s := newManager(t, bulkhead.WithCache(c))
	orgID := createOrg(t, s, "org-1")
	memberID := addActiveMembership(t, s, orgID, "user-1")

	ctx := userCtx("user-1")
	if got, ok := mgr.CurrentOrgID(ctx); !ok || got != orgID {
		t.Fatalf("expected %s, got %s", orgID, got)
	}

	// Suspend the membership. Without invalidation the cache would keep
	// serving the stale resolution.
	if err := s.UpdateMembershipStatus(context.Background(), memberID, membership.StatusSuspended); err != nil {
		t.Fatal(err)
	}
	mgr.InvalidateUser(context.Background(), "user-1")

	if _, ok := mgr.CurrentOrgID(ctx); ok {
		t.Fatal("suspended membership must not resolve after invalidation")
	}
}
