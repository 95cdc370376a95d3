package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	. "github.com/akilisha/darasa/apps/api/echo"
	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/core/reminder"
	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
	emailsvc "github.com/akilisha/darasa/services/email"
	inmemdb "github.com/akilisha/darasa/storage/database/inmem"
)

var (
	app     Server
	usrSvc  user.Service
	stdSvc  student.Service
	ledgSvc ledger.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type receiptStoreStub struct {
	err error
}

func (s *receiptStoreStub) SaveReceipt(ctx context.Context, name, contentType string, size int64, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	return "http://localhost:9000/darasa-receipts/receipts/" + name, nil
}

var receiptStore = &receiptStoreStub{}

func TestMain(m *testing.M) {
	conf := &core.Config{
		AppName:   "Darasa",
		TestMode:  true,
		SecretKey: []byte("supposedly-secret"),
	}
	conf.SupportEmail = mail.Address{Name: "Darasa Support", Address: "support@test.cd"}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRememberMeDelta = 30 * 24 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 8 * 24 * time.Hour

	// set up DB & repos
	db := inmemdb.NewDB()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewServiceMock(conf, inmemdb.NewUserRepository(db), mailSvc, inmemdb.NewApprovalCache())
	stdSvc = student.NewService(inmemdb.NewStudentRepository(db))
	ledgSvc = ledger.NewService(inmemdb.NewEntryRepository(db), receiptStore)
	remSvc := reminder.NewService(inmemdb.NewReminderJobRepository(db))
	sessSvc := session.NewService(
		conf, inmemdb.NewSessionRepository(db), stdSvc, ledgSvc, nil /* meetings */, remSvc, nopLogger{},
	)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	// set up server
	app = NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         nopLogger{},
			UserSvc:        usrSvc,
			StudentSvc:     stdSvc,
			SessionSvc:     sessSvc,
			LedgerSvc:      ledgSvc,
			MailSvc:        mailSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)

	os.Exit(m.Run())
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr, false)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

// createUser provisions an account directly through the service layer.
func createUser(t *testing.T, name, email string, roles []string, approved bool) user.User {
	t.Helper()
	ctx := context.Background()
	nu := user.NewUser{Name: name, Email: email, Password: "hakunamatata", PasswordConfirm: "hakunamatata"}

	var usr user.User
	var err error
	if approved {
		usr, err = usrSvc.Create(ctx, nu, roles...)
	} else {
		usr, err = usrSvc.Register(ctx, nu)
	}
	if err != nil {
		t.Fatalf("createUser(): %v", err)
	}
	return usr
}

func createStudent(t *testing.T, name, phone, pricePerHour string) student.Student {
	t.Helper()
	std, err := stdSvc.Create(context.Background(), student.NewStudent{
		Name:         name,
		Phone:        phone,
		PricePerHour: decimal.RequireFromString(pricePerHour),
	})
	if err != nil {
		t.Fatalf("createStudent(): %v", err)
	}
	return std
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshalBody(): %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
}
