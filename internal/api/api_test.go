package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ConnectID-SG/connectid/internal/dispatch"
	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/store"
)

type fakeController struct {
	result    *dispatch.CreateResult
	createErr error
	processed int
	sweepErr  error
	lastName  string
}

func (f *fakeController) CreateSignal(ctx context.Context, name string, location models.Location) (*dispatch.CreateResult, error) {
	f.lastName = name
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.result, nil
}

func (f *fakeController) Sweep(ctx context.Context) (int, error) {
	return f.processed, f.sweepErr
}

type fakeLocator struct {
	location models.Location
	err      error
	lastIP   string
}

func (f *fakeLocator) Locate(ctx context.Context, ip string) (models.Location, error) {
	f.lastIP = ip
	return f.location, f.err
}

type fakeRouter struct {
	updates []tgbotapi.Update
}

func (f *fakeRouter) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	f.updates = append(f.updates, update)
	return nil
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore, *fakeController, *fakeLocator, *fakeRouter) {
	t.Helper()
	s := store.NewInMemoryStore()
	c := &fakeController{
		result: &dispatch.CreateResult{
			Distress:  models.Distress{ID: "sig-1"},
			Responder: &models.Responder{ID: 10, Name: "Jordan"},
		},
	}
	l := &fakeLocator{location: models.Location{Latitude: 1.35, Longitude: 103.85, Address: "Bishan, (S)570123"}}
	r := &fakeRouter{}
	srv, err := NewServer(WithStore(s), WithController(c), WithLocator(l), WithRouter(r))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, s, c, l, r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestSOSHandlerMatched(t *testing.T) {
	srv, _, c, l, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sos?name=Ryan", nil)
	req.RemoteAddr = "219.75.78.138:54321"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Message != "Jordan will be attending to Ryan" {
		t.Errorf("message = %q", resp.Message)
	}
	if c.lastName != "Ryan" {
		t.Errorf("controller received name %q", c.lastName)
	}
	if l.lastIP != "219.75.78.138" {
		t.Errorf("locator received ip %q", l.lastIP)
	}
}

func TestSOSHandlerUnmatched(t *testing.T) {
	srv, _, c, _, _ := newTestServer(t)
	c.result = &dispatch.CreateResult{Distress: models.Distress{ID: "sig-1"}}

	req := httptest.NewRequest(http.MethodGet, "/sos?name=Ryan", nil)
	req.RemoteAddr = "219.75.78.138:54321"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Message, "Unable to find an available responder") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSOSHandlerMissingName(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sos", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSOSHandlerUnknownPWID(t *testing.T) {
	srv, _, c, _, _ := newTestServer(t)
	c.createErr = store.ErrNotFound

	req := httptest.NewRequest(http.MethodGet, "/sos?name=nobody", nil)
	req.RemoteAddr = "219.75.78.138:54321"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSOSHandlerForwardedFor(t *testing.T) {
	srv, _, _, l, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sos?name=Ryan", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "219.75.78.138, 10.0.0.1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if l.lastIP != "219.75.78.138" {
		t.Errorf("locator received ip %q", l.lastIP)
	}
}

func TestProcessHandler(t *testing.T) {
	srv, _, c, _, _ := newTestServer(t)
	c.processed = 2

	req := httptest.NewRequest(http.MethodGet, "/process", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"processed":2`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPWIDRegistrationAndLookup(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	body := `{"name":"Ryan","language_preference":"english","gender_preference":"female"}`
	req := httptest.NewRequest(http.MethodPost, "/pwid", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Duplicate registration conflicts.
	req = httptest.NewRequest(http.MethodPost, "/pwid", strings.NewReader(body))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/pwid/Ryan", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Ryan"`) {
		t.Errorf("lookup body = %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/pwid/nobody", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
}

func TestPWIDValidation(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/pwid", strings.NewReader(`{"name":""}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestResponderRegistrationAndLookup(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	body := `{"id":777,"name":"Jordan","languages":["english"],"gender":"female"}`
	req := httptest.NewRequest(http.MethodPost, "/responder", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/responder/777", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	// An absent message slot defaults to the unset marker.
	if !strings.Contains(rec.Body.String(), `"last_message_id":-1`) {
		t.Errorf("lookup body = %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/responder/abc", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", rec.Code)
	}
}

func TestWebhookHandler(t *testing.T) {
	srv, _, _, _, router := newTestServer(t)

	body := `{"update_id":5,"message":{"message_id":1,"chat":{"id":777},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(router.updates) != 1 || router.updates[0].UpdateID != 5 {
		t.Errorf("updates = %+v", router.updates)
	}
}

func TestHealthcheck(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	for _, path := range []string{"/sos", "/process", "/healthcheck"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}
