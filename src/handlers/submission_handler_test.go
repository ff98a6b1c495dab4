package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/username/bullionintake/backend/src/logger"
	"github.com/username/bullionintake/backend/src/models"
	"github.com/username/bullionintake/backend/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// fakeService records the payload the handler hands it and returns a
// canned outcome.
type fakeService struct {
	lastPayload models.SubmissionPayload
	result      *services.SubmissionResult
	processErr  error
	recent      []models.StoredSubmission
	recentErr   error
}

func (f *fakeService) ProcessSubmission(_ context.Context, p models.SubmissionPayload) (*services.SubmissionResult, error) {
	f.lastPayload = p
	return f.result, f.processErr
}

func (f *fakeService) RecentSubmissions(context.Context) ([]models.StoredSubmission, error) {
	return f.recent, f.recentErr
}

func postJSON(t *testing.T, handler *SubmissionHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/submit-form", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.HandleSubmitForm(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHandleSubmitFormFullSuccess(t *testing.T) {
	svc := &fakeService{
		result: &services.SubmissionResult{
			SubmissionID: "1700000000000-ada-x",
			Metaobject:   &models.Metaobject{ID: "gid://shopify/Metaobject/1", Handle: "form-submission-1"},
		},
	}
	handler := NewSubmissionHandler(svc, 1<<20)

	rec := postJSON(t, handler, `{"firstname":"Ada","email":"ada@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	if body["submissionId"] != "1700000000000-ada-x" {
		t.Errorf("submission id lost: %v", body["submissionId"])
	}
	if _, present := body["shopifySuccess"]; present {
		t.Error("shopifySuccess must be omitted on full success")
	}
	meta, ok := body["shopifyMetaobject"].(map[string]any)
	if !ok || meta["id"] != "gid://shopify/Metaobject/1" {
		t.Errorf("metaobject missing from response: %v", body["shopifyMetaobject"])
	}
	if svc.lastPayload.FirstName != "Ada" {
		t.Errorf("payload not forwarded to the service: %+v", svc.lastPayload)
	}
}

func TestHandleSubmitFormDegraded(t *testing.T) {
	svc := &fakeService{
		result: &services.SubmissionResult{
			SubmissionID: "1700000000000-ada-x",
			Degraded:     true,
			UpstreamErr:  errors.New("shopify graphql create failed: status 502"),
		},
	}
	handler := NewSubmissionHandler(svc, 1<<20)

	rec := postJSON(t, handler, `{"firstname":"Ada"}`)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("got status %d, want 207\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("degraded response still reports success true, got %v", body["success"])
	}
	if body["shopifySuccess"] != false {
		t.Errorf("expected shopifySuccess false, got %v", body["shopifySuccess"])
	}
	if body["submissionId"] != "1700000000000-ada-x" {
		t.Errorf("degraded response must carry the submission id, got %v", body["submissionId"])
	}
	errText, _ := body["error"].(string)
	if !strings.Contains(errText, "shopify graphql create failed") {
		t.Errorf("degraded response must carry the upstream error, got %q", errText)
	}
	if _, present := body["shopifyMetaobject"]; present {
		t.Error("degraded response must not carry a metaobject")
	}
}

func TestHandleSubmitFormTotalFailure(t *testing.T) {
	svc := &fakeService{processErr: errors.New("archive write failed: disk full")}
	handler := NewSubmissionHandler(svc, 1<<20)

	rec := postJSON(t, handler, `{"firstname":"Ada"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
	errText, _ := body["error"].(string)
	if !strings.Contains(errText, "disk full") {
		t.Errorf("error text must surface the failure, got %q", errText)
	}
}

func TestHandleSubmitFormRejectsBadJSON(t *testing.T) {
	handler := NewSubmissionHandler(&fakeService{}, 1<<20)

	rec := postJSON(t, handler, `{"firstname": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400\n%s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestHandleSubmitFormRejectsUnsupportedContentType(t *testing.T) {
	handler := NewSubmissionHandler(&fakeService{}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/submit-form", strings.NewReader("<form/>"))
	req.Header.Set("Content-Type", "text/xml")
	rec := httptest.NewRecorder()
	handler.HandleSubmitForm(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestHandleSubmitFormURLEncoded(t *testing.T) {
	svc := &fakeService{result: &services.SubmissionResult{SubmissionID: "id"}}
	handler := NewSubmissionHandler(svc, 1<<20)

	form := url.Values{}
	form.Set("firstname", "Ada")
	form.Set("email", "ada@example.com")
	form.Set("own_account", "on")
	form.Set("terms", "on")
	form.Set("product_type_0", "gold")
	form.Set("product_name_0", "Krugerrand")
	form.Set("product_price_0", "1850.50")
	form.Set("product_type_1", "silver")
	form.Set("product_name_1", "incomplete") // no price element

	req := httptest.NewRequest(http.MethodPost, "/api/submit-form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.HandleSubmitForm(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200\n%s", rec.Code, rec.Body.String())
	}

	p := svc.lastPayload
	if p.FirstName != "Ada" || !p.Meta.OwnAccount || !p.Meta.Agreements.Terms {
		t.Errorf("scalar/checkbox mapping wrong: %+v", p)
	}
	if len(p.Meta.PurchaseDetails.Products) != 1 {
		t.Fatalf("row without a price element must be dropped, got %d products", len(p.Meta.PurchaseDetails.Products))
	}
	if p.Meta.PurchaseDetails.Products[0].Name != "Krugerrand" {
		t.Errorf("unexpected surviving product: %+v", p.Meta.PurchaseDetails.Products[0])
	}
	if p.Meta.PurchaseDetails.Subtotal != "1850.50" {
		t.Errorf("subtotal must be computed server-side from included lines, got %q", p.Meta.PurchaseDetails.Subtotal)
	}
}

func TestHandleSubmitFormInfo(t *testing.T) {
	handler := NewSubmissionHandler(&fakeService{}, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/submit-form", nil)
	rec := httptest.NewRecorder()
	handler.HandleSubmitFormInfo(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "POST") {
		t.Errorf("info message must point at POST, got %q", msg)
	}
}

func TestHandleGetSubmissions(t *testing.T) {
	svc := &fakeService{
		recent: []models.StoredSubmission{
			{ID: "b", SubmissionPayload: models.SubmissionPayload{Email: "b@example.com"}},
			{ID: "a", SubmissionPayload: models.SubmissionPayload{Email: "a@example.com"}},
		},
	}
	handler := NewSubmissionHandler(svc, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
	rec := httptest.NewRecorder()
	handler.HandleGetSubmissions(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	submissions, ok := body["submissions"].([]any)
	if !ok || len(submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %v", body["submissions"])
	}
}

func TestHandleGetSubmissionsEmpty(t *testing.T) {
	handler := NewSubmissionHandler(&fakeService{}, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
	rec := httptest.NewRecorder()
	handler.HandleGetSubmissions(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"submissions":[]`) {
		t.Errorf("empty listing must serialize as an array, got %s", rec.Body.String())
	}
}

func TestHandleGetSubmissionsError(t *testing.T) {
	handler := NewSubmissionHandler(&fakeService{recentErr: errors.New("scan failed")}, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
	rec := httptest.NewRecorder()
	handler.HandleGetSubmissions(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}
