package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/store/memory"
)

func newTestManager(t *testing.T) (*bulkhead.Manager, *memory.Store) {
	t.Helper()
	s := memory.New()
	mgr, err := bulkhead.NewManager(bulkhead.WithStore(s))
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

type reportPayload struct {
	Month string `json:"month"`
}

func TestJobRunsUnderItsOrganization(t *testing.T) {
	mgr, s := newTestManager(t)
	org3 := createOrg(t, s, "org-3")

	registry := NewRegistry()
	var mu sync.Mutex
	var seenOrg id.OrgID
	var seenMonth string
	RegisterDefinition(registry, NewDefinition("report.generate", func(ctx context.Context, p reportPayload) error {
		got, ok := mgr.CurrentOrgID(ctx)
		if !ok {
			t.Error("handler must see the job's organization")
		}
		mu.Lock()
		seenOrg = got
		seenMonth = p.Month
		mu.Unlock()
		return nil
	}))

	runner := NewRunner(mgr, registry, WithConcurrency(1))
	runner.Start()

	j, err := NewJob("report.generate", reportPayload{Month: "2026-08"}, WithOrg(org3))
	if err != nil {
		t.Fatal(err)
	}
	if err := runner.Enqueue(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if j.State != StateCompleted {
		t.Fatalf("expected completed, got %s (%s)", j.State, j.LastError)
	}
	mu.Lock()
	defer mu.Unlock()
	if seenOrg != org3 {
		t.Fatalf("expected %s, got %s", org3, seenOrg)
	}
	if seenMonth != "2026-08" {
		t.Fatalf("payload mismatch: %s", seenMonth)
	}
}

func TestUnscopedJobRefusedEvenAfterScopedJob(t *testing.T) {
	mgr, s := newTestManager(t)
	orgA := createOrg(t, s, "org-a")

	registry := NewRegistry()
	RegisterDefinition(registry, NewDefinition("noop", func(ctx context.Context, _ struct{}) error {
		return nil
	}))

	// One worker: both jobs run on the same goroutine.
	runner := NewRunner(mgr, registry, WithConcurrency(1))
	runner.Start()

	scoped, err := NewJob("noop", nil, WithOrg(orgA))
	if err != nil {
		t.Fatal(err)
	}
	unscoped, err := NewJob("noop", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := runner.Enqueue(context.Background(), scoped); err != nil {
		t.Fatal(err)
	}
	if err := runner.Enqueue(context.Background(), unscoped); err != nil {
		t.Fatal(err)
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if scoped.State != StateCompleted {
		t.Fatalf("scoped job: expected completed, got %s (%s)", scoped.State, scoped.LastError)
	}
	// The previous job's context must not bleed into this one.
	if unscoped.State != StateFailed {
		t.Fatalf("unscoped job: expected failed, got %s", unscoped.State)
	}
	if !strings.Contains(unscoped.LastError, bulkhead.ErrMissingTenant.Error()) {
		t.Fatalf("expected missing-tenant failure, got %s", unscoped.LastError)
	}
}

type derivingPayload struct {
	Org id.OrgID `json:"org"`
}

func (p derivingPayload) DeriveOrg() id.OrgID { return p.Org }

func TestPayloadDerivesOrganization(t *testing.T) {
	orgID := id.NewOrgID()
	j, err := NewJob("sync", derivingPayload{Org: orgID})
	if err != nil {
		t.Fatal(err)
	}
	if j.OrgID != orgID {
		t.Fatalf("expected derived org %s, got %s", orgID, j.OrgID)
	}

	// Explicit WithOrg wins over derivation.
	other := id.NewOrgID()
	j2, err := NewJob("sync", derivingPayload{Org: orgID}, WithOrg(other))
	if err != nil {
		t.Fatal(err)
	}
	if j2.OrgID != other {
		t.Fatalf("explicit org must win, got %s", j2.OrgID)
	}
}

func TestEnqueueInheritsAmbientOrganization(t *testing.T) {
	mgr, s := newTestManager(t)
	orgA := createOrg(t, s, "org-a")

	registry := NewRegistry()
	var mu sync.Mutex
	var seen id.OrgID
	RegisterDefinition(registry, NewDefinition("noop", func(ctx context.Context, _ struct{}) error {
		got, _ := mgr.CurrentOrgID(ctx)
		mu.Lock()
		seen = got
		mu.Unlock()
		return nil
	}))

	runner := NewRunner(mgr, registry, WithConcurrency(1))
	runner.Start()

	// Enqueue from inside a tenant-scoped request.
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}
	reqCtx, err := mgr.SetCurrent(context.Background(), actor, orgA)
	if err != nil {
		t.Fatal(err)
	}
	j, err := NewJob("noop", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := runner.Enqueue(reqCtx, j); err != nil {
		t.Fatal(err)
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if j.OrgID != orgA {
		t.Fatalf("job must capture the enqueuer's organization, got %s", j.OrgID)
	}
	if j.Actor.ID != "user-1" {
		t.Fatalf("job must capture the enqueuer's actor, got %s", j.Actor.ID)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen != orgA {
		t.Fatalf("expected %s, got %s", orgA, seen)
	}
}

func TestJobsForDifferentOrgsDoNotInterfere(t *testing.T) {
	mgr, s := newTestManager(t)

	orgs := make([]id.OrgID, 4)
	for i := range orgs {
		orgs[i] = createOrg(t, s, "org-"+string(rune('a'+i)))
	}

	registry := NewRegistry()
	RegisterDefinition(registry, NewDefinition("check", func(ctx context.Context, p derivingPayload) error {
		got, ok := mgr.CurrentOrgID(ctx)
		if !ok || got != p.Org {
			t.Errorf("job for %s saw %s", p.Org, got)
		}
		return nil
	}))

	runner := NewRunner(mgr, registry, WithConcurrency(4))
	runner.Start()

	jobsList := make([]*Job, 0, 40)
	for range 10 {
		for _, org := range orgs {
			j, err := NewJob("check", derivingPayload{Org: org})
			if err != nil {
				t.Fatal(err)
			}
			jobsList = append(jobsList, j)
			if err := runner.Enqueue(context.Background(), j); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, j := range jobsList {
		if j.State != StateCompleted {
			t.Fatalf("job %s: expected completed, got %s (%s)", j.ID, j.State, j.LastError)
		}
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	mgr, s := newTestManager(t)
	orgA := createOrg(t, s, "org-a")

	registry := NewRegistry()
	RegisterDefinition(registry, NewDefinition("explode", func(ctx context.Context, _ struct{}) error {
		panic("boom")
	}))

	runner := NewRunner(mgr, registry, WithConcurrency(1))
	runner.Start()

	j, err := NewJob("explode", nil, WithOrg(orgA))
	if err != nil {
		t.Fatal(err)
	}
	if err := runner.Enqueue(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if j.State != StateFailed {
		t.Fatalf("expected failed, got %s", j.State)
	}
	if !strings.Contains(j.LastError, "panic") {
		t.Fatalf("expected panic error, got %s", j.LastError)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(ctx context.Context, j *Job, next Handler) error {
			order = append(order, name+"-in")
			err := next(ctx)
			order = append(order, name+"-out")
			return err
		}
	}

	chain := Chain(mw("outer"), mw("inner"))
	err := chain(context.Background(), &Job{Name: "t"}, func(ctx context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"outer-in", "inner-in", "handler", "inner-out", "outer-out"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestUnknownJobNameFails(t *testing.T) {
	mgr, s := newTestManager(t)
	orgA := createOrg(t, s, "org-a")

	runner := NewRunner(mgr, NewRegistry(), WithConcurrency(1))
	runner.Start()

	j, err := NewJob("ghost", nil, WithOrg(orgA))
	if err != nil {
		t.Fatal(err)
	}
	if err := runner.Enqueue(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if j.State != StateFailed {
		t.Fatalf("expected failed, got %s", j.State)
	}
}
