package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/organization"
)

func (a *API) registerOrganizationRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("organizations"))

	if err := g.POST("/organizations", a.createOrganization,
		forge.WithSummary("Create organization"),
		forge.WithDescription("Creates a new organization."),
		forge.WithOperationID("createOrganization"),
		forge.WithRequestSchema(CreateOrganizationRequest{}),
		forge.WithCreatedResponse(&organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/organizations/:orgId", a.getOrganization,
		forge.WithSummary("Get organization"),
		forge.WithDescription("Returns details of a specific organization."),
		forge.WithOperationID("getOrganization"),
		forge.WithResponseSchema(http.StatusOK, "Organization details", &organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/organizations/:orgId", a.updateOrganization,
		forge.WithSummary("Update organization"),
		forge.WithDescription("Updates an organization's name and metadata."),
		forge.WithOperationID("updateOrganization"),
		forge.WithRequestSchema(UpdateOrganizationRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated organization", &organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/organizations/:orgId/deactivate", a.deactivateOrganization,
		forge.WithSummary("Deactivate organization"),
		forge.WithDescription("Marks an organization inactive; its members can no longer establish context."),
		forge.WithOperationID("deactivateOrganization"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/organizations/:orgId/activate", a.activateOrganization,
		forge.WithSummary("Activate organization"),
		forge.WithDescription("Marks an organization active again."),
		forge.WithOperationID("activateOrganization"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/organizations", a.listOrganizations,
		forge.WithSummary("List organizations"),
		forge.WithDescription("Lists organizations with optional filters."),
		forge.WithOperationID("listOrganizations"),
		forge.WithRequestSchema(ListOrganizationsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Organization list", []*organization.Organization{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createOrganization(ctx forge.Context, req *CreateOrganizationRequest) (*organization.Organization, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}
	if req.Slug == "" {
		return nil, forge.BadRequest("slug is required")
	}

	o := &organization.Organization{
		ID:       id.NewOrgID(),
		Name:     req.Name,
		Slug:     req.Slug,
		Active:   true,
		Metadata: req.Metadata,
	}
	if err := a.mgr.Store().CreateOrganization(ctx.Context(), o); err != nil {
		return nil, mapError(err)
	}

	return o, ctx.JSON(http.StatusCreated, o)
}

func (a *API) getOrganization(ctx forge.Context, _ *GetOrganizationRequest) (*organization.Organization, error) {
	orgID, err := id.ParseOrgID(ctx.Param("orgId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid organization ID: %v", err))
	}

	o, err := a.mgr.Store().GetOrganization(ctx.Context(), orgID)
	if err != nil {
		return nil, mapError(err)
	}

	return o, ctx.JSON(http.StatusOK, o)
}

func (a *API) updateOrganization(ctx forge.Context, req *UpdateOrganizationRequest) (*organization.Organization, error) {
	orgID, err := id.ParseOrgID(ctx.Param("orgId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid organization ID: %v", err))
	}

	o, err := a.mgr.Store().GetOrganization(ctx.Context(), orgID)
	if err != nil {
		return nil, mapError(err)
	}

	if req.Name != "" {
		o.Name = req.Name
	}
	if req.Metadata != nil {
		o.Metadata = req.Metadata
	}

	if err := a.mgr.Store().UpdateOrganization(ctx.Context(), o); err != nil {
		return nil, mapError(err)
	}

	return o, ctx.JSON(http.StatusOK, o)
}

func (a *API) deactivateOrganization(ctx forge.Context, _ *GetOrganizationRequest) (*struct{}, error) {
	return a.setOrganizationActive(ctx, false)
}

func (a *API) activateOrganization(ctx forge.Context, _ *GetOrganizationRequest) (*struct{}, error) {
	return a.setOrganizationActive(ctx, true)
}

func (a *API) setOrganizationActive(ctx forge.Context, active bool) (*struct{}, error) {
	orgID, err := id.ParseOrgID(ctx.Param("orgId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid organization ID: %v", err))
	}

	if err := a.mgr.Store().SetOrganizationActive(ctx.Context(), orgID, active); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listOrganizations(ctx forge.Context, req *ListOrganizationsRequest) ([]*organization.Organization, error) {
	filter := &organization.ListFilter{
		Active: req.Active,
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}

	orgs, err := a.mgr.Store().ListOrganizations(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return orgs, ctx.JSON(http.StatusOK, orgs)
}
