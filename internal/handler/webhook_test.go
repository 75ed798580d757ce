package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/service"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRelay struct {
	got     service.InboundEvent
	outcome service.Outcome
	err     error
}

func (f *fakeRelay) Handle(_ context.Context, ev service.InboundEvent) (service.Outcome, error) {
	f.got = ev
	return f.outcome, f.err
}

func webhookEngine(r InboundRelay) *gin.Engine {
	e := gin.New()
	e.POST("/webhook/mattermost", NewWebhookHandler(r, zap.NewNop()).Mattermost)
	return e
}

func TestWebhookStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    service.Outcome
		err        error
		wantCode   int
		wantStatus string
	}{
		{"relayed", service.OutcomeRelayed, nil, http.StatusOK, "ok"},
		{"no-op", service.OutcomeTicketNotFound, nil, http.StatusOK, "ok"},
		{"bad token", "", &errs.AuthorizationError{Reason: "mismatch"}, http.StatusForbidden, "error"},
		{"missing post id", "", &errs.ValidationError{Field: "post_id", Reason: "required"}, http.StatusBadRequest, "error"},
		{"unexpected", "", errors.New("db is gone"), http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{outcome: tt.outcome, err: tt.err}
			req := httptest.NewRequest(http.MethodPost, "/webhook/mattermost", strings.NewReader(`{"post_id":"p1","token":"t"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			webhookEngine(relay).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
			var body webhookResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if tt.err != nil && tt.wantCode == http.StatusInternalServerError && !strings.Contains(body.Message, "db is gone") {
				t.Errorf("500 must carry the error detail, got %q", body.Message)
			}
		})
	}
}

func TestWebhookFormBody(t *testing.T) {
	relay := &fakeRelay{outcome: service.OutcomeRelayed}
	form := url.Values{"post_id": {"p9"}, "token": {"secret"}, "user_name": {"anna"}, "text": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/mattermost", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	webhookEngine(relay).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if relay.got.PostID != "p9" || relay.got.Token != "secret" || relay.got.UserName != "anna" || relay.got.Text != "hello" {
		t.Errorf("event = %+v", relay.got)
	}
}

func TestWebhookMalformedJSON(t *testing.T) {
	relay := &fakeRelay{}
	req := httptest.NewRequest(http.MethodPost, "/webhook/mattermost", strings.NewReader(`{"post_id":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	webhookEngine(relay).ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
	if relay.got.PostID != "" {
		t.Error("relay must not be called on parse failure")
	}
}
