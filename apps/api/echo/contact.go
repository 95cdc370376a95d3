package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core"
)

type contactApi struct {
	deps ServerDeps
}

func registerContactAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := contactApi{deps: deps}
	g.POST("/contact", api.contact, jwt)
}

// contact relays a message from a signed-in user to the support inbox.
func (api *contactApi) contact(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	// explicit sender details win over the account's, e.g. when asking
	// on behalf of a parent
	name, email := data.Name, data.Email
	if name == "" {
		name = usr.Name
	}
	if email == "" {
		email = usr.Email
	}

	api.deps.MailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{api.deps.Conf.SupportEmail},
		Subject: data.Subject,
		BodyStr: fmt.Sprintf("From: %s <%s>\n\n%s", name, email, data.Message),
	})
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Message sent. We will get back to you shortly."})
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email" validate:"omitempty,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (cr *ContactRequest) Validate(validate *validator.Validate) error {
	cr.Name = core.CleanString(cr.Name)
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	cr.Subject = core.CleanString(cr.Subject)
	cr.Message = core.CleanString(cr.Message)
	return validate.Struct(cr)
}
