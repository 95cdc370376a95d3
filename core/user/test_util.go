package user

import (
	"context"

	"github.com/akilisha/darasa/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose password-reset mail is sent synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService, approvals ApprovalCache) Service {
	initTokenGenerator(conf)
	return &serviceMock{
		service: service{
			conf:      conf,
			repo:      repo,
			mailSvc:   mailSvc,
			approvals: approvals,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
