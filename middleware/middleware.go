// Package middleware provides the request boundary adapters: they
// establish the active organization at the edge, before any business
// code runs, and tear it down when the unit of work ends. Synchronous
// and asynchronous requests share the same adapter; every request runs
// on its own goroutine with its own derived context, so nothing bleeds
// between concurrent units.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
)

// Resolver derives the acting identity and target organization from an
// incoming request. Implementations typically read a session, a JWT
// claim, or an API key header. A resolver error denies the request.
type Resolver interface {
	Resolve(r *http.Request) (bulkhead.Actor, id.OrgID, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(r *http.Request) (bulkhead.Actor, id.OrgID, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(r *http.Request) (bulkhead.Actor, id.OrgID, error) {
	return f(r)
}

// HTTP returns stdlib middleware that establishes tenant context for
// every request. Resolution or validation failure denies the request
// outright: there is no anonymous-tenant fallthrough. Teardown is a
// defer, so it runs on handler panic and client disconnect alike.
func HTTP(mgr *bulkhead.Manager, resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, orgID, err := resolver.Resolve(r)
			if err != nil {
				deny(w, "identity could not be resolved")
				return
			}
			ctx, err := mgr.SetCurrent(r.Context(), actor, orgID)
			if err != nil {
				deny(w, "organization context could not be established")
				return
			}
			defer mgr.ClearCurrent(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant returns forge middleware for apps where forge itself
// installs the scope. It does not establish context; it validates that
// the scope names a real, active organization, and denies otherwise.
func RequireTenant(mgr *bulkhead.Manager) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			if _, err := mgr.CurrentOrganization(ctx.Context()); err != nil {
				return denyForge(ctx)
			}
			return next(ctx)
		}
	}
}

func deny(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"error": reason}) //nolint:errcheck // response write
}

func denyForge(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusForbidden)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "no active organization"})
}
