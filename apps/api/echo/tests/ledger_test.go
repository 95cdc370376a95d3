package tests

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/core/user"
	"github.com/akilisha/darasa/storage/object"
)

func Test_ledgerApi_crud(t *testing.T) {
	tutor := createUser(t, "Tutor", "ledg-tutor@test.cd", user.TutorRoles, true)
	token := getToken(t, tutor)
	std := createStudent(t, "Ledger Kid", "+243812345682", "25.00")

	// record a payment
	req, rec := newAuthRequest(http.MethodPost, "/v1/ledger", token, marchallObj(t, map[string]interface{}{
		"student_id": std.ID,
		"type":       "PAYMENT_CONFIRMATION",
		"amount":     "100.00",
		"reference":  "MPESA-XK92",
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)

	var ent ledger.Entry
	unmarshalBody(t, rec, &ent)
	if ent.ID == "" || ent.Reference.String != "MPESA-XK92" {
		t.Fatalf("unexpected entry: %+v", ent)
	}

	// zero amounts are meaningless
	req, rec = newAuthRequest(http.MethodPost, "/v1/ledger", token, marchallObj(t, map[string]interface{}{
		"student_id": std.ID,
		"type":       "ADJUSTMENT",
		"amount":     "0",
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// so are unknown types
	req, rec = newAuthRequest(http.MethodPost, "/v1/ledger", token, marchallObj(t, map[string]interface{}{
		"student_id": std.ID,
		"type":       "REFUND",
		"amount":     "10.00",
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// update keeps unset fields
	req, rec = newAuthRequest(http.MethodPut, "/v1/ledger/"+ent.ID, token, marchallObj(t, map[string]interface{}{
		"amount": "110.00",
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	unmarshalBody(t, rec, &ent)
	if !ent.Amount.Equal(decimal.RequireFromString("110.00")) {
		t.Errorf("amount = %s; want 110.00", ent.Amount)
	}
	if ent.Reference.String != "MPESA-XK92" {
		t.Errorf("reference = %q; want MPESA-XK92", ent.Reference.String)
	}

	// filter by type
	req, rec = newAuthRequest(http.MethodGet, "/v1/ledger?student_id="+std.ID+"&type=PAYMENT_CONFIRMATION", token)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var entries []ledger.Entry
	unmarshalBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].ID != ent.ID {
		t.Errorf("query returned %d entries; want the payment only", len(entries))
	}

	// destroy
	req, rec = newAuthRequest(http.MethodDelete, "/v1/ledger/"+ent.ID, token)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)

	req, rec = newAuthRequest(http.MethodGet, "/v1/ledger/"+ent.ID, token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "not found"}),
	}, rec)
}

func Test_ledgerApi_uploadReceipt(t *testing.T) {
	tutor := createUser(t, "Tutor", "rcpt-tutor@test.cd", user.TutorRoles, true)
	token := getToken(t, tutor)
	std := createStudent(t, "Receipt Kid", "+243812345683", "25.00")

	req, rec := newAuthRequest(http.MethodPost, "/v1/ledger", token, marchallObj(t, map[string]interface{}{
		"student_id": std.ID,
		"type":       "PAYMENT_CONFIRMATION",
		"amount":     "50.00",
	}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var ent ledger.Entry
	unmarshalBody(t, rec, &ent)

	uploadReq := func(t *testing.T, entryID string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
		t.Helper()
		body := new(bytes.Buffer)
		w := multipart.NewWriter(body)
		part, err := w.CreateFormFile("receipt", "receipt.png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err = part.Write(content); err != nil {
			t.Fatal(err)
		}
		if err = w.Close(); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/ledger/"+entryID+"/receipt", body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return req, httptest.NewRecorder()
	}

	// PNG magic bytes followed by junk still sniff as image/png
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x01}, 64)...)

	t.Run("ok", func(t *testing.T) {
		req, rec := uploadReq(t, ent.ID, png)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusOK)

		var updated ledger.Entry
		unmarshalBody(t, rec, &updated)
		if !updated.ReceiptURL.Valid || !strings.Contains(updated.ReceiptURL.String, ent.ID) {
			t.Errorf("receipt_url = %+v; want a URL embedding the entry ID", updated.ReceiptURL)
		}
	})

	t.Run("bucket access denied", func(t *testing.T) {
		receiptStore.err = object.ErrAccessDenied
		defer func() { receiptStore.err = nil }()

		req, rec := uploadReq(t, ent.ID, png)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "receipt storage denied access, check the bucket credentials"}),
		}, rec)
	})

	t.Run("non-image rejected", func(t *testing.T) {
		req, rec := uploadReq(t, ent.ID, []byte("%PDF-1.4 not an image"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"receipt": "only image files are allowed"}),
		}, rec)
	})

	t.Run("missing file", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/ledger/"+ent.ID+"/receipt", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "missing receipt file"}),
		}, rec)
	})

	t.Run("unknown entry", func(t *testing.T) {
		req, rec := uploadReq(t, "52fdfc07-2182-454f-963f-5f0f9a621d72", png)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}, rec)
	})
}
