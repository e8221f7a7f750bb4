package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit"))

	if err := g.GET("/audit-log", a.listAuditEntries,
		forge.WithSummary("Query audit log"),
		forge.WithDescription("Returns recorded isolation violations with optional filters."),
		forge.WithOperationID("listAuditEntries"),
		forge.WithRequestSchema(ListAuditEntriesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit entry list", &ListResponse[*audit.Entry]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/audit-log/:auditId", a.getAuditEntry,
		forge.WithSummary("Get audit entry"),
		forge.WithDescription("Returns a single audit entry."),
		forge.WithOperationID("getAuditEntry"),
		forge.WithResponseSchema(http.StatusOK, "Audit entry", &audit.Entry{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAuditEntries(ctx forge.Context, req *ListAuditEntriesRequest) (*ListResponse[*audit.Entry], error) {
	filter := &audit.QueryFilter{
		ActorID:      req.ActorID,
		ResourceType: req.ResourceType,
		Outcome:      audit.Outcome(req.Outcome),
		Limit:        defaultLimit(req.Limit),
		Offset:       req.Offset,
	}

	if req.AttemptedOrgID != "" {
		oid, err := id.ParseOrgID(req.AttemptedOrgID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid attempted_org_id: %v", err))
		}
		filter.AttemptedOrgID = &oid
	}
	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	entries, err := a.mgr.Store().ListAuditEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.mgr.Store().CountAuditEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*audit.Entry]{
		Items:  entries,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) getAuditEntry(ctx forge.Context, _ *GetAuditEntryRequest) (*audit.Entry, error) {
	auditID, err := id.ParseAuditID(ctx.Param("auditId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid audit entry ID: %v", err))
	}

	entry, err := a.mgr.Store().GetAuditEntry(ctx.Context(), auditID)
	if err != nil {
		return nil, mapError(err)
	}

	return entry, ctx.JSON(http.StatusOK, entry)
}
