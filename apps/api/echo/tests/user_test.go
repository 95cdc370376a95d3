package tests

import (
	"context"
	"net/http"
	"testing"

	echoapi "github.com/akilisha/darasa/apps/api/echo"
	"github.com/akilisha/darasa/core/user"
)

// Test_userApi_approvalFlow walks the whole sign-up lifecycle: register,
// log in, get turned away from business endpoints, get approved by an
// admin, and finally get through.
func Test_userApi_approvalFlow(t *testing.T) {
	admin := createUser(t, "Admin", "flow-admin@test.cd", user.AdminRoles, true)
	adminToken := getToken(t, admin)

	// register
	body := marchallObj(t, map[string]string{
		"name":             "Awe Sh",
		"email":            "flow-awe@test.cd",
		"password":         "hakunamatata",
		"password_confirm": "hakunamatata",
	})
	req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)

	var registered user.User
	unmarshalBody(t, rec, &registered)
	if registered.Approved {
		t.Error("registered user must start unapproved")
	}

	// duplicate email is a field error
	req, rec = newRequest(http.MethodPost, "/v1/users/register", body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
	}, rec)

	// login
	req, rec = newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, map[string]interface{}{
		"email":    "flow-awe@test.cd",
		"password": "hakunamatata",
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var login echoapi.LoginResponse
	unmarshalBody(t, rec, &login)
	if login.Token == "" {
		t.Fatal("login returned an empty token")
	}

	// wrong password
	req, rec = newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, map[string]interface{}{
		"email":    "flow-awe@test.cd",
		"password": "nope nope",
	}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
	}, rec)

	// business endpoints are closed pre-approval
	req, rec = newAuthRequest(http.MethodGet, "/v1/students", login.Token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "account pending approval"}),
	}, rec)

	// the client polls its own status
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/approval-status", login.Token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.ApprovalStatusResponse{Approved: false}),
	}, rec)

	// only admins may approve
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/"+registered.ID+"/approve", login.Token)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusForbidden)

	req, rec = newAuthRequest(http.MethodPost, "/v1/users/"+registered.ID+"/approve", adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var approved user.User
	unmarshalBody(t, rec, &approved)
	if !approved.Approved {
		t.Error("user must be approved after the admin call")
	}

	// now the status polls true and business endpoints open up
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/approval-status", login.Token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.ApprovalStatusResponse{Approved: true}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students", login.Token)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
}

func Test_userApi_accessControl(t *testing.T) {
	tutor := createUser(t, "Tutor", "ac-tutor@test.cd", nil, true)
	tutorToken := getToken(t, tutor)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodGet, path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodGet, path: "/v1/users", token: tutorToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Create requires admin", method: http.MethodPost, path: "/v1/users", token: tutorToken,
			body:     marchallObj(t, map[string]string{"name": "X", "email": "x@test.cd", "password": "hakunamatata", "password_confirm": "hakunamatata"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_tokenRefresh(t *testing.T) {
	tutor := createUser(t, "Tutor", "refresh-tutor@test.cd", nil, true)
	token := getToken(t, tutor)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var refreshed echoapi.LoginResponse
	unmarshalBody(t, rec, &refreshed)
	if refreshed.Token == "" {
		t.Error("refresh returned an empty token")
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	createUser(t, "Reset Me", "reset-me@test.cd", nil, true)

	// an unknown email gets the same response; no account probing
	for _, email := range []string{"reset-me@test.cd", "who-dis@test.cd"} {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, map[string]string{"email": email}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.SuccessResponse{
				Success: "If the email address supplied is associated with an active account on this system, " +
					"an email will arrive in your inbox shortly with instructions to reset your password.",
			}),
		}, rec)
	}

	// a tampered token is rejected
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", marchallObj(t, map[string]string{
		"uid":              "bm9wZQ",
		"token":            "lol-lol",
		"password":         "newpassword",
		"password_confirm": "newpassword",
	}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "invalid token"}),
	}, rec)
}

// Test_userApi_updateCredentials checks that a tutor can store their own
// Zoom/WhatsApp credentials over the API: secrets bind on the way in and
// are redacted on the way out.
func Test_userApi_updateCredentials(t *testing.T) {
	usr := createUser(t, "Creds Tutor", "creds-tutor@test.cd", user.TutorRoles, true)
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+usr.ID, token, marchallObj(t, map[string]interface{}{
		"zoom": map[string]string{
			"account_id":    "acc",
			"client_id":     "cid",
			"client_secret": "sec",
		},
		"whatsapp": map[string]string{
			"phone_number_id": "555000111",
			"token":           "tutor-token",
		},
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	// secrets never show up in responses
	var resp map[string]interface{}
	unmarshalBody(t, rec, &resp)
	if zoom, ok := resp["zoom"].(map[string]interface{}); !ok {
		t.Fatal("zoom missing from response")
	} else if _, found := zoom["client_secret"]; found {
		t.Error("client_secret must be redacted from responses")
	}

	// but they round-trip into the store
	stored, err := usrSvc.GetByID(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed, %v", err)
	}
	if stored.Zoom.IsZero() || stored.Zoom.ClientSecret != "sec" {
		t.Errorf("zoom credentials not persisted: %+v", stored.Zoom)
	}
	if stored.WhatsApp.IsZero() || stored.WhatsApp.Token != "tutor-token" {
		t.Errorf("whatsapp credentials not persisted: %+v", stored.WhatsApp)
	}

	// a partial pair is rejected wholesale
	req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+usr.ID, token, marchallObj(t, map[string]interface{}{
		"whatsapp": map[string]string{"phone_number_id": "555000222"},
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)
}
