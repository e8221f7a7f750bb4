package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead"
)

func (a *API) registerContextRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("context"))

	return g.GET("/context", a.getContext,
		forge.WithSummary("Current context"),
		forge.WithDescription("Returns the caller's active organization and identity."),
		forge.WithOperationID("getContext"),
		forge.WithResponseSchema(http.StatusOK, "Current context", &ContextResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getContext(ctx forge.Context, _ *struct{}) (*ContextResponse, error) {
	o, err := a.mgr.CurrentOrganization(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ContextResponse{
		OrgID: o.ID.String(),
		Name:  o.Name,
		Slug:  o.Slug,
		Admin: bulkhead.IsAdmin(ctx.Context()),
	}
	if actor, ok := bulkhead.ActorFrom(ctx.Context()); ok {
		resp.ActorKind = string(actor.Kind)
		resp.ActorID = actor.ID
		resp.Admin = resp.Admin || actor.Superuser
	}

	return resp, ctx.JSON(http.StatusOK, resp)
}
