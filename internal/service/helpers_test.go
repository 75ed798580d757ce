package service

import (
	"context"
	"sync"
	"testing"

	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/relay"
	"github.com/psds-microservice/support-bot/internal/relay/relaytest"
	"github.com/psds-microservice/support-bot/internal/repository/repotest"
	"go.uber.org/zap"
)

type recordedEvent struct {
	name    string
	payload map[string]interface{}
}

type recordingProducer struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingProducer) ProduceTicketEvent(_ context.Context, event string, payload map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: event, payload: payload})
}

func (p *recordingProducer) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

type harness struct {
	store   *repotest.Store
	threads *relaytest.Threads
	issues  *relaytest.Issues
	events  *recordingProducer
	tickets *TicketService
	users   *UserService
}

func newHarness(t *testing.T, opts TicketOptions) *harness {
	t.Helper()
	h := &harness{
		store:   repotest.New(),
		threads: &relaytest.Threads{},
		issues:  &relaytest.Issues{},
		events:  &recordingProducer{},
	}
	out := relay.NewOutbound(h.threads, h.issues)
	h.tickets = NewTicketService(h.store.Tickets(), h.store.Users(), h.store.Messages(), out, h.events, opts, zap.NewNop())
	h.users = NewUserService(h.store.Users(), zap.NewNop())
	return h
}

func (h *harness) user(t *testing.T, chatID int64, name string) *model.User {
	t.Helper()
	u, _, err := h.users.Register(context.Background(), RegisterInput{ChatID: chatID, FullName: name, Company: "Acme", Shop: "Main st"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func (h *harness) activeTicket(t *testing.T, u *model.User, title string) *model.Ticket {
	t.Helper()
	ctx := context.Background()
	p, err := h.tickets.CreatePendingTicket(ctx, u, title, "details")
	if err != nil {
		t.Fatalf("CreatePendingTicket: %v", err)
	}
	a, err := h.tickets.ActivateTicket(ctx, p.ID)
	if err != nil {
		t.Fatalf("ActivateTicket: %v", err)
	}
	return a
}
