package user_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/user"
	emailsvc "github.com/akilisha/darasa/services/email"
	inmemdb "github.com/akilisha/darasa/storage/database/inmem"
)

func setup(t *testing.T) (user.Service, *inmemdb.ApprovalCache) {
	t.Helper()
	conf := &core.Config{
		SecretKey:                 []byte("secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	approvals := inmemdb.NewApprovalCache()
	svc := user.NewServiceMock(
		conf,
		inmemdb.NewUserRepository(inmemdb.NewDB()),
		emailsvc.NewConsoleServiceMock(conf),
		approvals,
	)
	return svc, approvals
}

func TestService_RegisterAndApprove(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	usr, err := svc.Register(ctx, user.NewUser{
		Name:     "Awe Sh",
		Email:    "awe@test.cd",
		Password: "hakunamatata",
	})
	require.NoError(t, err)
	require.False(t, usr.Approved, "self-registered accounts must start unapproved")
	require.Equal(t, user.TutorRoles, usr.Roles)
	require.NotNil(t, usr.IsActive)
	require.True(t, *usr.IsActive)
	require.NoError(t, usr.CheckPassword("hakunamatata"))

	approved, err := svc.ApprovalStatus(ctx, usr.ID)
	require.NoError(t, err)
	require.False(t, approved)

	_, err = svc.Approve(ctx, usr.ID)
	require.NoError(t, err)

	approved, err = svc.ApprovalStatus(ctx, usr.ID)
	require.NoError(t, err)
	require.True(t, approved)
}

func TestService_ApprovalStatus_cached(t *testing.T) {
	ctx := context.Background()
	svc, approvals := setup(t)

	usr, err := svc.Register(ctx, user.NewUser{Name: "Awe Sh", Email: "awe@test.cd", Password: "hakunamatata"})
	require.NoError(t, err)

	// first poll populates the cache
	approved, err := svc.ApprovalStatus(ctx, usr.ID)
	require.NoError(t, err)
	require.False(t, approved)

	cachedApproved, cached, err := approvals.GetApproval(ctx, usr.ID)
	require.NoError(t, err)
	require.True(t, cached)
	require.False(t, cachedApproved)

	// approval invalidates the stale entry
	_, err = svc.Approve(ctx, usr.ID)
	require.NoError(t, err)

	_, cached, err = approvals.GetApproval(ctx, usr.ID)
	require.NoError(t, err)
	require.False(t, cached, "Approve must drop the cached flag")

	approved, err = svc.ApprovalStatus(ctx, usr.ID)
	require.NoError(t, err)
	require.True(t, approved)

	_, err = svc.ApprovalStatus(ctx, "52fdfc07-2182-454f-963f-5f0f9a621d72")
	require.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	usr, err := svc.Create(ctx, user.NewUser{Name: "Admin", Email: "admin@test.cd", Password: "hakunamatata"}, user.RoleAdmin)
	require.NoError(t, err)
	require.True(t, usr.Approved, "admin-created accounts are pre-approved")
	require.True(t, usr.IsAdmin())

	// roles default to tutor
	usr, err = svc.Create(ctx, user.NewUser{Name: "Tutor", Email: "tutor@test.cd", Password: "hakunamatata"})
	require.NoError(t, err)
	require.Equal(t, user.TutorRoles, usr.Roles)
	require.True(t, usr.IsTutor())
}

func TestService_CheckUniqueness(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	usr, err := svc.Register(ctx, user.NewUser{Name: "Awe Sh", Email: "awe@test.cd", Password: "hakunamatata"})
	require.NoError(t, err)

	require.NoError(t, svc.CheckUniqueness(ctx, "new@test.cd"))

	err = svc.CheckUniqueness(ctx, "awe@test.cd")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	// the owner may keep their own email
	require.NoError(t, svc.CheckUniqueness(ctx, "awe@test.cd", usr))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	usr, err := svc.Register(ctx, user.NewUser{Name: "Awe Sh", Email: "awe@test.cd", Password: "hakunamatata"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, usr.ID, user.UpdateUser{
		Name: "Awe Shole",
		WhatsApp: &user.WhatsAppCredentialsInput{
			PhoneNumberID: "555000111",
			Token:         "tutor-token",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Awe Shole", updated.Name)
	require.Equal(t, "awe@test.cd", updated.Email, "unset fields keep their value")
	require.Equal(t, "tutor-token", updated.WhatsApp.Token)
	require.False(t, updated.Approved)

	// password change
	_, err = svc.Update(ctx, usr.ID, user.UpdateUser{Password: "newpassword"})
	require.NoError(t, err)
	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	require.NoError(t, refreshed.CheckPassword("newpassword"))
	require.Error(t, refreshed.CheckPassword("hakunamatata"))
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	usr, err := svc.Register(ctx, user.NewUser{Name: "Awe Sh", Email: "awe@test.cd", Password: "hakunamatata"})
	require.NoError(t, err)

	require.Equal(t, user.ErrNotFound, errors.Cause(svc.RequestPasswordReset(ctx, "unknown@test.cd")))

	sentBefore := len(emailsvc.SentMessages)
	require.NoError(t, svc.RequestPasswordReset(ctx, "awe@test.cd"))
	require.Len(t, emailsvc.SentMessages, sentBefore+1)

	// the mail's template data carries the UID/token pair
	data := reflect.ValueOf(emailsvc.SentMessages[len(emailsvc.SentMessages)-1].TemplateData)
	uid := data.FieldByName("UID").String()
	token := data.FieldByName("Token").String()

	t.Run("invalid uid", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: "???", Token: "lol", Password: "newpassword"})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("bad token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: user.EncodeUID(usr), Token: "lol", Password: "newpassword"})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("ok", func(t *testing.T) {
		rp := user.ResetUserPassword{UID: uid, Token: token, Password: "newpassword"}
		require.NoError(t, svc.ResetPassword(ctx, rp))

		refreshed, err := svc.GetByEmail(ctx, usr.Email)
		require.NoError(t, err)
		require.NoError(t, refreshed.CheckPassword("newpassword"))
	})
}
