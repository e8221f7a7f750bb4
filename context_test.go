package bulkhead_test

import (
	"context"
	"testing"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
)

func TestActiveFromEmptyContext(t *testing.T) {
	if _, ok := bulkhead.ActiveFrom(context.Background()); ok {
		t.Fatal("empty context must carry no active context")
	}
	if _, ok := bulkhead.ActorFrom(context.Background()); ok {
		t.Fatal("empty context must carry no actor")
	}
	if _, ok := bulkhead.OrgFromContext(context.Background()); ok {
		t.Fatal("empty context must carry no organization")
	}
}

func TestWithActiveContextRoundTrip(t *testing.T) {
	actor := bulkhead.Actor{Kind: bulkhead.ActorService, ID: "billing"}
	orgID := id.NewOrgID()
	ctx := bulkhead.WithActiveContext(context.Background(), bulkhead.ActiveContext{Actor: actor, OrgID: orgID})

	ac, ok := bulkhead.ActiveFrom(ctx)
	if !ok {
		t.Fatal("expected an active context")
	}
	if ac.Actor != actor || ac.OrgID != orgID {
		t.Fatalf("round trip lost data: %+v", ac)
	}

	got, ok := bulkhead.OrgFromContext(ctx)
	if !ok || got != orgID {
		t.Fatalf("expected %s, got %s", orgID, got)
	}
}

func TestActorOnlyContextCarriesNoOrg(t *testing.T) {
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"}
	ctx := bulkhead.WithActiveContext(context.Background(), bulkhead.ActiveContext{Actor: actor})

	if _, ok := bulkhead.OrgFromContext(ctx); ok {
		t.Fatal("actor-only context must not resolve an organization")
	}
	if got, ok := bulkhead.ActorFrom(ctx); !ok || got != actor {
		t.Fatalf("actor lost: %+v (ok=%v)", got, ok)
	}
}

func TestAdminMarker(t *testing.T) {
	base := context.Background()
	if bulkhead.IsAdmin(base) {
		t.Fatal("fresh context must not be administrative")
	}

	admin := bulkhead.WithAdmin(base)
	if !bulkhead.IsAdmin(admin) {
		t.Fatal("marked context must be administrative")
	}
	if bulkhead.IsAdmin(base) {
		t.Fatal("marking must not leak into the parent context")
	}
}
