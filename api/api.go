// Package api provides HTTP handlers for the Bulkhead isolation core.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/interceptor"
	"github.com/xraph/bulkhead/scoped"
)

// API wires all Bulkhead HTTP handlers together.
type API struct {
	mgr     *bulkhead.Manager
	repo    *scoped.Repo
	sweeper *interceptor.Interceptor
	router  forge.Router
}

// New creates an API from a Manager and a Forge router.
func New(mgr *bulkhead.Manager, router forge.Router) *API {
	return &API{
		mgr:     mgr,
		repo:    scoped.NewRepo(mgr),
		sweeper: interceptor.New(mgr),
		router:  router,
	}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("bulkhead: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerContextRoutes,
		a.registerOrganizationRoutes,
		a.registerMembershipRoutes,
		a.registerAuditRoutes,
		a.registerRecordRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
