//go:build integration

package rls_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/rls"
	"github.com/xraph/bulkhead/store/memory"
)

// setupTestPool starts a Postgres container and returns a pinned pool
// plus a manager backed by the in-memory store for context resolution.
func setupTestPool(t *testing.T) (*rls.Pool, *bulkhead.Manager, *memory.Store) {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("bulkhead_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	s := memory.New()
	mgr, err := bulkhead.NewManager(bulkhead.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}

	pool, err := rls.New(ctx, connStr, mgr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool, mgr, s
}

func createOrg(t *testing.T, s *memory.Store, name string) id.OrgID {
	t.Helper()
	o := &organization.Organization{ID: id.NewOrgID(), Name: name, Slug: name, Active: true}
	if err := s.CreateOrganization(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	return o.ID
}

func asTenant(t *testing.T, mgr *bulkhead.Manager, orgID id.OrgID, userID string) context.Context {
	t.Helper()
	actor := bulkhead.Actor{Kind: bulkhead.ActorUser, ID: userID}
	ctx, err := mgr.SetCurrent(context.Background(), actor, orgID)
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

// seedDocuments creates a policed table with one row per org. The
// container user is a superuser and bypasses row security, so queries
// that should see the policy run under a plain role.
func seedDocuments(t *testing.T, pool *rls.Pool, orgs ...id.OrgID) {
	t.Helper()
	ctx := context.Background()

	admin := bulkhead.WithAdmin(ctx)
	err := pool.WithConn(admin, func(conn *pgxpool.Conn) error {
		if _, execErr := conn.Exec(ctx, `
CREATE TABLE documents (
    id      SERIAL PRIMARY KEY,
    org_id  TEXT NOT NULL,
    title   TEXT NOT NULL
)`); execErr != nil {
			return execErr
		}
		for _, org := range orgs {
			if _, execErr := conn.Exec(ctx,
				"INSERT INTO documents (org_id, title) VALUES ($1, $2)",
				org.String(), "doc-"+org.String(),
			); execErr != nil {
				return execErr
			}
		}
		_, execErr := conn.Exec(ctx, "CREATE ROLE app_user NOLOGIN")
		if execErr != nil {
			return execErr
		}
		_, execErr = conn.Exec(ctx, "GRANT SELECT, INSERT ON documents TO app_user")
		return execErr
	})
	if err != nil {
		t.Fatalf("seed documents: %v", err)
	}

	if err := pool.EnablePolicy(ctx, "documents", "org_id"); err != nil {
		t.Fatalf("enable policy: %v", err)
	}
}

// countAsAppUser runs the count under the unprivileged role so the
// policy actually applies.
func countAsAppUser(t *testing.T, pool *rls.Pool, ctx context.Context) (int, error) {
	t.Helper()
	var count int
	err := pool.WithConn(ctx, func(conn *pgxpool.Conn) error {
		if _, roleErr := conn.Exec(ctx, "SET ROLE app_user"); roleErr != nil {
			return roleErr
		}
		defer conn.Exec(context.Background(), "RESET ROLE") //nolint:errcheck // best-effort cleanup
		return conn.QueryRow(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	})
	return count, err
}

func TestPoolPinsActiveOrganization(t *testing.T) {
	pool, mgr, s := setupTestPool(t)
	orgA := createOrg(t, s, "org-a")
	orgB := createOrg(t, s, "org-b")
	seedDocuments(t, pool, orgA, orgB)

	ctxA := asTenant(t, mgr, orgA, "user-a")
	count, err := countAsAppUser(t, pool, ctxA)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("org-a session must see exactly its own row, got %d", count)
	}

	ctxB := asTenant(t, mgr, orgB, "user-b")
	count, err = countAsAppUser(t, pool, ctxB)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("org-b session must see exactly its own row, got %d", count)
	}
}

func TestPoolRefusesUnscopedCaller(t *testing.T) {
	pool, _, s := setupTestPool(t)
	orgA := createOrg(t, s, "org-a")
	seedDocuments(t, pool, orgA)

	_, err := pool.Acquire(context.Background())
	if !errors.Is(err, bulkhead.ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
}

func TestPoolPrivilegedWildcard(t *testing.T) {
	pool, _, s := setupTestPool(t)
	orgA := createOrg(t, s, "org-a")
	orgB := createOrg(t, s, "org-b")
	seedDocuments(t, pool, orgA, orgB)

	admin := bulkhead.WithAdmin(context.Background())
	count, err := countAsAppUser(t, pool, admin)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("privileged session must see all rows, got %d", count)
	}
}

func TestReleaseResetsPinnedOrganization(t *testing.T) {
	pool, mgr, s := setupTestPool(t)
	orgA := createOrg(t, s, "org-a")
	seedDocuments(t, pool, orgA)

	ctxA := asTenant(t, mgr, orgA, "user-a")
	conn, err := pool.Acquire(ctxA)
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(conn)

	// The next pinned borrow must reflect its own caller, not the
	// previous one. An admin session after a tenant session proves the
	// pool re-pins on every acquire.
	admin := bulkhead.WithAdmin(context.Background())
	err = pool.WithConn(admin, func(conn *pgxpool.Conn) error {
		var setting string
		if scanErr := conn.QueryRow(ctxA, "SELECT current_setting('app.current_org', true)").Scan(&setting); scanErr != nil {
			return scanErr
		}
		if setting != "*" {
			t.Fatalf("admin session pinned %q, want wildcard", setting)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
