package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/membership"
)

func (a *API) registerMembershipRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("memberships"))

	if err := g.POST("/organizations/:orgId/memberships", a.inviteMember,
		forge.WithSummary("Invite member"),
		forge.WithDescription("Invites a user into an organization."),
		forge.WithOperationID("inviteMember"),
		forge.WithRequestSchema(InviteMemberRequest{}),
		forge.WithCreatedResponse(&membership.Membership{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/organizations/:orgId/memberships", a.listMemberships,
		forge.WithSummary("List memberships"),
		forge.WithDescription("Lists memberships of an organization with optional filters."),
		forge.WithOperationID("listMemberships"),
		forge.WithRequestSchema(ListMembershipsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Membership list", []*membership.Membership{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/memberships/:membershipId/status", a.updateMembershipStatus,
		forge.WithSummary("Change membership status"),
		forge.WithDescription("Moves a membership between invited, active and suspended."),
		forge.WithOperationID("updateMembershipStatus"),
		forge.WithRequestSchema(UpdateMembershipStatusRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated membership", &membership.Membership{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/memberships/:membershipId", a.deleteMembership,
		forge.WithSummary("Remove membership"),
		forge.WithDescription("Removes a membership entirely."),
		forge.WithOperationID("deleteMembership"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) inviteMember(ctx forge.Context, req *InviteMemberRequest) (*membership.Membership, error) {
	orgID, err := id.ParseOrgID(ctx.Param("orgId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid organization ID: %v", err))
	}
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}

	// The organization must exist and resolve before anyone is invited
	// into it.
	if _, err := a.mgr.Store().GetOrganization(ctx.Context(), orgID); err != nil {
		return nil, mapError(err)
	}

	m := &membership.Membership{
		ID:     id.NewMembershipID(),
		OrgID:  orgID,
		UserID: req.UserID,
		Status: membership.StatusInvited,
		Role:   req.Role,
	}
	if err := a.mgr.Store().CreateMembership(ctx.Context(), m); err != nil {
		return nil, mapError(err)
	}
	a.mgr.InvalidateUser(ctx.Context(), req.UserID)

	return m, ctx.JSON(http.StatusCreated, m)
}

func (a *API) listMemberships(ctx forge.Context, req *ListMembershipsRequest) ([]*membership.Membership, error) {
	orgID, err := id.ParseOrgID(ctx.Param("orgId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid organization ID: %v", err))
	}

	filter := &membership.ListFilter{
		OrgID:  &orgID,
		UserID: req.UserID,
		Status: membership.Status(req.Status),
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}

	memberships, err := a.mgr.Store().ListMemberships(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return memberships, ctx.JSON(http.StatusOK, memberships)
}

func (a *API) updateMembershipStatus(ctx forge.Context, req *UpdateMembershipStatusRequest) (*membership.Membership, error) {
	memberID, err := id.ParseMembershipID(ctx.Param("membershipId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid membership ID: %v", err))
	}

	status := membership.Status(req.Status)
	switch status {
	case membership.StatusInvited, membership.StatusActive, membership.StatusSuspended:
	default:
		return nil, forge.BadRequest(fmt.Sprintf("invalid status %q", req.Status))
	}

	if err := a.mgr.Store().UpdateMembershipStatus(ctx.Context(), memberID, status); err != nil {
		return nil, mapError(err)
	}

	m, err := a.mgr.Store().GetMembership(ctx.Context(), memberID)
	if err != nil {
		return nil, mapError(err)
	}
	a.mgr.InvalidateUser(ctx.Context(), m.UserID)

	return m, ctx.JSON(http.StatusOK, m)
}

func (a *API) deleteMembership(ctx forge.Context, _ *GetMembershipRequest) (*struct{}, error) {
	memberID, err := id.ParseMembershipID(ctx.Param("membershipId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid membership ID: %v", err))
	}

	m, err := a.mgr.Store().GetMembership(ctx.Context(), memberID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := a.mgr.Store().DeleteMembership(ctx.Context(), memberID); err != nil {
		return nil, mapError(err)
	}
	a.mgr.InvalidateUser(ctx.Context(), m.UserID)

	return nil, ctx.NoContent(http.StatusNoContent)
}
