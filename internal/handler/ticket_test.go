package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/relay"
	"github.com/psds-microservice/support-bot/internal/relay/relaytest"
	"github.com/psds-microservice/support-bot/internal/repository/repotest"
	"github.com/psds-microservice/support-bot/internal/service"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (f *fakeNotifier) NotifyUser(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

type adminFixture struct {
	engine   *gin.Engine
	tickets  *service.TicketService
	user     *model.User
	threads  *relaytest.Threads
	notifier *fakeNotifier
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	store := repotest.New()
	threads := &relaytest.Threads{}
	tickets := service.NewTicketService(store.Tickets(), store.Users(), store.Messages(),
		relay.NewOutbound(threads, &relaytest.Issues{}), nil, service.TicketOptions{}, zap.NewNop())
	users := service.NewUserService(store.Users(), zap.NewNop())
	u, _, err := users.Register(context.Background(), service.RegisterInput{ChatID: 77, FullName: "Ivan Petrov", Company: "Acme", Shop: "s"})
	if err != nil {
		t.Fatal(err)
	}
	notifier := &fakeNotifier{}
	h := NewTicketHandler(tickets, users, notifier, zap.NewNop())

	e := gin.New()
	v1 := e.Group("/api/v1", AdminAuth("admin-token"))
	v1.GET("/tickets", h.List)
	v1.GET("/tickets/:id", h.Get)
	v1.POST("/tickets/:id/close", h.Close)
	v1.POST("/tickets/:id/activate", h.Activate)
	return &adminFixture{engine: e, tickets: tickets, user: u, threads: threads, notifier: notifier}
}

func (f *adminFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestAdminAuth(t *testing.T) {
	f := newAdminFixture(t)
	if w := f.do(http.MethodGet, "/api/v1/tickets", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token code = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tickets", "wrong"); w.Code != http.StatusForbidden {
		t.Errorf("wrong token code = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tickets", "admin-token"); w.Code != http.StatusOK {
		t.Errorf("valid token code = %d", w.Code)
	}
}

func TestAdminListAndGet(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	p, _ := f.tickets.CreatePendingTicket(ctx, f.user, "Printer broken", "Won't turn on")
	a, _ := f.tickets.CreatePendingTicket(ctx, f.user, "Scanner", "jams")
	if _, err := f.tickets.ActivateTicket(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	w := f.do(http.MethodGet, "/api/v1/tickets?status=pending", "admin-token")
	var list struct {
		Tickets []model.Ticket `json:"tickets"`
		Total   int64          `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Tickets) != 1 || list.Tickets[0].ID != p.ID {
		t.Errorf("list = %+v", list)
	}

	if w := f.do(http.MethodGet, "/api/v1/tickets?user_id=abc", "admin-token"); w.Code != http.StatusBadRequest {
		t.Errorf("bad user_id code = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tickets/999", "admin-token"); w.Code != http.StatusNotFound {
		t.Errorf("missing ticket code = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tickets/"+strconv.FormatUint(a.ID, 10), "admin-token"); w.Code != http.StatusOK {
		t.Errorf("get code = %d", w.Code)
	}
}

func TestAdminCloseNotifiesOnce(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	p, _ := f.tickets.CreatePendingTicket(ctx, f.user, "Printer broken", "d")
	if _, err := f.tickets.ActivateTicket(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	path := "/api/v1/tickets/" + strconv.FormatUint(p.ID, 10) + "/close"

	for i := 0; i < 2; i++ {
		if w := f.do(http.MethodPost, path, "admin-token"); w.Code != http.StatusOK {
			t.Fatalf("close #%d code = %d", i+1, w.Code)
		}
	}
	if got := len(f.notifier.sent[77]); got != 1 {
		t.Errorf("notifications = %d, want 1", got)
	}
}

func TestAdminActivate(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	p, _ := f.tickets.CreatePendingTicket(ctx, f.user, "t", "d")
	path := "/api/v1/tickets/" + strconv.FormatUint(p.ID, 10) + "/activate"

	f.threads.CreateErr = errors.New("down")
	if w := f.do(http.MethodPost, path, "admin-token"); w.Code != http.StatusBadGateway {
		t.Errorf("remote failure code = %d", w.Code)
	}
	f.threads.CreateErr = nil
	if w := f.do(http.MethodPost, path, "admin-token"); w.Code != http.StatusOK {
		t.Errorf("activate code = %d", w.Code)
	}
	if w := f.do(http.MethodPost, path, "admin-token"); w.Code != http.StatusConflict {
		t.Errorf("second activate code = %d", w.Code)
	}
}

func TestReady(t *testing.T) {
	e := gin.New()
	e.GET("/ready", Ready(map[string]Pinger{
		"db":    func() error { return nil },
		"redis": func() error { return errors.New("refused") },
	}))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", w.Code)
	}
}
