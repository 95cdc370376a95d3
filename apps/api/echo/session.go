package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core/session"
)

type sessionApi struct {
	deps ServerDeps
}

func registerSessionAPI(g *echo.Group, jwt, approved echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{deps: deps}

	sg := g.Group("/sessions", jwt, approved)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)
	sg.POST("/:id/complete", api.complete)
	sg.POST("/:id/cancel", api.cancel)
	sg.POST("/:id/no-show", api.noShow)
}

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	creator, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.deps.SessionSvc.Create(ctx.Request().Context(), creator, data)
	if err != nil {
		return errors.Wrap(err, "scheduling session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) query(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []session.Session{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.deps.SessionSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.deps.SessionSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding session by ID")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	sess, err := api.deps.SessionSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding session by ID")
	}

	var data session.UpdateSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err = data.Validate(sess, api.deps.Validate); err != nil {
		return err
	}

	sess, err = api.deps.SessionSvc.Update(ctx.Request().Context(), sess.ID, data)
	if err != nil {
		if errors.Cause(err) == session.ErrInvalidTransition {
			return errHttpConflict
		}
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

// complete closes out a session and records its derived charge on the
// student's ledger.
func (api *sessionApi) complete(ctx echo.Context) error {
	var data session.CompleteSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteSession")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.deps.SessionSvc.Complete(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		switch errors.Cause(err) {
		case session.ErrNotFound:
			return errHttpNotFound
		case session.ErrInvalidTransition:
			return errHttpConflict
		}
		return errors.Wrap(err, "completing session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) cancel(ctx echo.Context) error {
	sess, err := api.deps.SessionSvc.Cancel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		switch errors.Cause(err) {
		case session.ErrNotFound:
			return errHttpNotFound
		case session.ErrInvalidTransition:
			return errHttpConflict
		}
		return errors.Wrap(err, "canceling session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) noShow(ctx echo.Context) error {
	sess, err := api.deps.SessionSvc.MarkNoShow(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		switch errors.Cause(err) {
		case session.ErrNotFound:
			return errHttpNotFound
		case session.ErrInvalidTransition:
			return errHttpConflict
		}
		return errors.Wrap(err, "marking session no-show")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	if err := api.deps.SessionSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}
