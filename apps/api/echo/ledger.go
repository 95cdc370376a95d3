package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/storage/object"
)

type ledgerApi struct {
	deps ServerDeps
}

func registerLedgerAPI(g *echo.Group, jwt, approved echo.MiddlewareFunc, deps ServerDeps) {
	api := ledgerApi{deps: deps}

	lg := g.Group("/ledger", jwt, approved)
	lg.POST("", api.create)
	lg.GET("", api.query)
	lg.GET("/:id", api.retrieve)
	lg.PUT("/:id", api.update)
	lg.DELETE("/:id", api.destroy)
	lg.POST("/:id/receipt", api.uploadReceipt)
}

func (api *ledgerApi) create(ctx echo.Context) error {
	var data ledger.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ent, err := api.deps.LedgerSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording ledger entry")
	}
	return ctx.JSON(http.StatusCreated, ent)
}

func (api *ledgerApi) query(ctx echo.Context) error {
	filter := new(ledger.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []ledger.Entry{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.deps.LedgerSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying ledger entries")
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *ledgerApi) retrieve(ctx echo.Context) error {
	ent, err := api.deps.LedgerSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == ledger.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding ledger entry by ID")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *ledgerApi) update(ctx echo.Context) error {
	ent, err := api.deps.LedgerSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == ledger.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding ledger entry by ID")
	}

	var data ledger.UpdateEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	if err = data.Validate(ent, api.deps.Validate); err != nil {
		return err
	}

	ent, err = api.deps.LedgerSvc.Update(ctx.Request().Context(), ent.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating ledger entry")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *ledgerApi) destroy(ctx echo.Context) error {
	if err := api.deps.LedgerSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting ledger entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// uploadReceipt attaches a receipt image to a payment entry. The file
// comes in as the "receipt" multipart form field.
func (api *ledgerApi) uploadReceipt(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("receipt")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing receipt file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "opening receipt file")
	}
	defer func() { _ = file.Close() }()

	ent, err := api.deps.LedgerSvc.UploadReceipt(
		ctx.Request().Context(), ctx.Param("id"), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		switch errors.Cause(err) {
		case ledger.ErrNotFound:
			return errHttpNotFound
		case object.ErrAccessDenied:
			return echo.NewHTTPError(http.StatusForbidden, "receipt storage denied access, check the bucket credentials")
		}
		return errors.Wrap(err, "uploading receipt")
	}
	return ctx.JSON(http.StatusOK, ent)
}
