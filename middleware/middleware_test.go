package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
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

// headerResolver reads identity from test headers.
func headerResolver() Resolver {
	return ResolverFunc(func(r *http.Request) (bulkhead.Actor, id.OrgID, error) {
		orgID, err := id.ParseOrgID(r.Header.Get("X-Org-ID"))
		if err != nil {
			return bulkhead.Actor{}, id.Nil, err
		}
		actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: r.Header.Get("X-User-ID")}
		return actor, orgID, nil
	})
}

func TestHTTPEstablishesContext(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-1")

	var seen id.OrgID
	handler := HTTP(mgr, headerResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := mgr.CurrentOrgID(r.Context())
		if !ok {
			t.Error("handler must see the active organization")
		}
		seen = got
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org-ID", orgID.String())
	req.Header.Set("X-User-ID", "user-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if seen != orgID {
		t.Fatalf("expected %s, got %s", orgID, seen)
	}
}

func TestHTTPDeniesUnresolvedIdentity(t *testing.T) {
	mgr, _ := newTestManager(t)

	called := false
	handler := HTTP(mgr, headerResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil) // no headers
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if called {
		t.Fatal("handler must not run without tenant context")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON denial, got %s", ct)
	}
}

func TestHTTPDeniesUnknownOrganization(t *testing.T) {
	mgr, _ := newTestManager(t)

	handler := HTTP(mgr, headerResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for an unknown organization")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org-ID", id.NewOrgID().String()) // never created
	req.Header.Set("X-User-ID", "user-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestHTTPDeniesInactiveOrganization(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-1")
	if err := s.SetOrganizationActive(context.Background(), orgID, false); err != nil {
		t.Fatal(err)
	}

	handler := HTTP(mgr, headerResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for an inactive organization")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org-ID", orgID.String())
	req.Header.Set("X-User-ID", "user-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestHTTPConcurrentRequestsDoNotInterfere(t *testing.T) {
	mgr, s := newTestManager(t)

	orgs := make([]id.OrgID, 8)
	for i := range orgs {
		orgs[i] = createOrg(t, s, "org-"+string(rune('a'+i)))
	}

	handler := HTTP(mgr, headerResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := r.Header.Get("X-Org-ID")
		got, ok := mgr.CurrentOrgID(r.Context())
		if !ok || got.String() != want {
			t.Errorf("request for %s saw %s", want, got)
		}
		w.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	for i := range orgs {
		for range 25 {
			wg.Add(1)
			go func(orgID id.OrgID) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("X-Org-ID", orgID.String())
				req.Header.Set("X-User-ID", "user-"+orgID.String())
				rr := httptest.NewRecorder()
				handler.ServeHTTP(rr, req)
				if rr.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rr.Code)
				}
			}(orgs[i])
		}
	}
	wg.Wait()
}

func TestHTTPContextClearedAfterRequest(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-1")

	base := context.Background()
	handler := HTTP(mgr, headerResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org-ID", orgID.String())
	req.Header.Set("X-User-ID", "user-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// The caller's context never saw the organization: establishment was
	// confined to the request's derived context.
	if _, ok := mgr.CurrentOrgID(base); ok {
		t.Fatal("tenant context leaked outside the request")
	}
}

func TestResolverFuncErrorMessageNotLeaked(t *testing.T) {
	mgr, _ := newTestManager(t)

	resolver := ResolverFunc(func(r *http.Request) (bulkhead.Actor, id.OrgID, error) {
		return bulkhead.Actor{}, id.Nil, context.DeadlineExceeded
	})
	handler := HTTP(mgr, resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Contains(rr.Body.String(), "deadline") {
		t.Fatal("internal error detail must not reach the client")
	}
}
