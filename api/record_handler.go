package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead/interceptor"
	"github.com/xraph/bulkhead/record"
)

// Record routes run through the sweep wrapper: every outgoing payload
// is checked for foreign-tenant values before it is written, so even a
// handler bug here cannot leak another organization's data.
func (a *API) registerRecordRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("records"))

	if err := g.POST("/records", interceptor.Checked(a.sweeper, http.StatusCreated, a.createRecord),
		forge.WithSummary("Create record"),
		forge.WithDescription("Creates a record owned by the caller's active organization."),
		forge.WithOperationID("createRecord"),
		forge.WithRequestSchema(CreateRecordRequest{}),
		forge.WithCreatedResponse(&record.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/records/:type", interceptor.CheckedOK(a.sweeper, a.listRecords),
		forge.WithSummary("List records"),
		forge.WithDescription("Lists the caller's records of a type."),
		forge.WithOperationID("listRecords"),
		forge.WithResponseSchema(http.StatusOK, "Record list", []*record.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/records/:type/:id", interceptor.CheckedOK(a.sweeper, a.getRecord),
		forge.WithSummary("Get record"),
		forge.WithDescription("Returns a single record of the caller's organization."),
		forge.WithOperationID("getRecord"),
		forge.WithResponseSchema(http.StatusOK, "Record details", &record.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/records/:type/:id", interceptor.CheckedOK(a.sweeper, a.updateRecord),
		forge.WithSummary("Update record"),
		forge.WithDescription("Updates a record's payload. Ownership never changes."),
		forge.WithOperationID("updateRecord"),
		forge.WithRequestSchema(UpdateRecordRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated record", &record.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/records/:type/:id", a.deleteRecord,
		forge.WithSummary("Delete record"),
		forge.WithDescription("Deletes a record of the caller's organization."),
		forge.WithOperationID("deleteRecord"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRecord(ctx forge.Context, req *CreateRecordRequest) (*record.Record, error) {
	if req.Type == "" {
		return nil, forge.BadRequest("type is required")
	}
	if req.ID == "" {
		return nil, forge.BadRequest("id is required")
	}

	rec := &record.Record{
		Type: req.Type,
		ID:   req.ID,
		Data: req.Data,
	}
	if err := a.repo.Create(ctx.Context(), rec); err != nil {
		return nil, mapError(err)
	}

	return rec, nil
}

func (a *API) listRecords(ctx forge.Context, _ *ListRecordsRequest) ([]*record.Record, error) {
	records, err := a.repo.List(ctx.Context(), ctx.Param("type"))
	if err != nil {
		return nil, mapError(err)
	}
	return records, nil
}

func (a *API) getRecord(ctx forge.Context, _ *GetRecordRequest) (*record.Record, error) {
	rec, err := a.repo.Get(ctx.Context(), ctx.Param("type"), ctx.Param("id"))
	if err != nil {
		return nil, mapError(err)
	}
	return rec, nil
}

func (a *API) updateRecord(ctx forge.Context, req *UpdateRecordRequest) (*record.Record, error) {
	rec, err := a.repo.Get(ctx.Context(), ctx.Param("type"), ctx.Param("id"))
	if err != nil {
		return nil, mapError(err)
	}

	rec.Data = req.Data
	if err := a.repo.Update(ctx.Context(), rec); err != nil {
		return nil, mapError(err)
	}
	return rec, nil
}

func (a *API) deleteRecord(ctx forge.Context, _ *GetRecordRequest) (*struct{}, error) {
	if err := a.repo.Delete(ctx.Context(), ctx.Param("type"), ctx.Param("id")); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}
