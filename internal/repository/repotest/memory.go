// Package repotest provides in-memory repositories with the same semantics as the gorm ones.
package repotest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/repository"
)

// Store держит все три таблицы под одним мьютексом.
type Store struct {
	mu       sync.Mutex
	users    map[uint64]model.User
	tickets  map[uint64]model.Ticket
	messages []model.Message
	seq      uint64
	// Clock задаёт created_at/updated_at. По умолчанию time.Now, каждый вызов строго позже предыдущего.
	Clock func() time.Time
	last  time.Time
}

func New() *Store {
	return &Store{
		users:   make(map[uint64]model.User),
		tickets: make(map[uint64]model.Ticket),
		Clock:   time.Now,
	}
}

func (s *Store) Users() repository.UserRepository       { return userRepo{s} }
func (s *Store) Tickets() repository.TicketRepository   { return ticketRepo{s} }
func (s *Store) Messages() repository.MessageRepository { return messageRepo{s} }

func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) now() time.Time {
	t := s.Clock()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// UserCount, TicketSnapshot и MessagesFor: для проверок в тестах.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) TicketSnapshot(id uint64) (model.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

func (s *Store) MessagesFor(ticketID uint64) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out
}

// SetUpdatedAt сдвигает updated_at тикета (для проверки оконной политики).
func (s *Store) SetUpdatedAt(id uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tickets[id]
	t.UpdatedAt = at
	s.tickets[id] = t
}

// SetStatus меняет статус в обход переходов (например, унаследованный "new").
func (s *Store) SetStatus(id uint64, status model.TicketStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tickets[id]
	t.Status = status
	s.tickets[id] = t
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.ExternalChatID == u.ExternalChatID {
			return errDuplicate("users.external_chat_id")
		}
	}
	u.ID = r.s.next()
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = r.s.now()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errs.UserNotFound(id)
	}
	return &u, nil
}

func (r userRepo) FindByExternalChatID(_ context.Context, chatID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ExternalChatID == chatID {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, t *model.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.next()
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.tickets[t.ID] = cloneTicket(*t)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, errs.TicketNotFound(id)
	}
	t = cloneTicket(t)
	return &t, nil
}

func (r ticketRepo) GetWithMessages(ctx context.Context, id uint64) (*model.Ticket, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Messages = r.s.MessagesFor(id)
	return t, nil
}

func (r ticketRepo) ListByUser(_ context.Context, userID uint64) ([]model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Ticket
	for _, t := range r.s.sortedTickets() {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// List understands the "column = ?" keys the admin handler builds.
func (r ticketRepo) List(_ context.Context, filter map[string]interface{}, limit, offset int) ([]model.Ticket, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []model.Ticket
	for _, t := range r.s.sortedTickets() {
		if matchFilter(t, filter) {
			matched = append(matched, t)
		}
	}
	total := int64(len(matched))
	if offset > 0 {
		if offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[offset:]
		}
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r ticketRepo) FindLatest(_ context.Context, q repository.TicketQuery) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.sortedTickets() {
		if t.UserID != q.UserID {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, t.Status) {
			continue
		}
		if !q.UpdatedSince.IsZero() && t.UpdatedAt.Before(q.UpdatedSince) {
			continue
		}
		return &t, nil
	}
	return nil, nil
}

func (r ticketRepo) FindByRemoteThreadID(_ context.Context, threadID string) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.sortedTickets() {
		if t.ThreadID() == threadID && threadID != "" {
			return &t, nil
		}
	}
	return nil, nil
}

func (r ticketRepo) Activate(_ context.Context, id uint64, threadID, issueID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return errs.TicketNotFound(id)
	}
	if t.Status != model.TicketStatusPending {
		return errs.ErrInvalidTransition
	}
	t.RemoteThreadID = &threadID
	t.RemoteIssueID = &issueID
	t.Status = model.TicketStatusActive
	t.UpdatedAt = r.s.now()
	r.s.tickets[id] = t
	return nil
}

func (r ticketRepo) Transition(_ context.Context, id uint64, from []model.TicketStatus, to model.TicketStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return errs.TicketNotFound(id)
	}
	if !containsStatus(from, t.Status) {
		return errs.ErrInvalidTransition
	}
	t.Status = to
	t.UpdatedAt = at
	if to == model.TicketStatusClosed {
		closed := at
		t.ClosedAt = &closed
	}
	r.s.tickets[id] = t
	return nil
}

func (r ticketRepo) Touch(_ context.Context, id uint64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tickets[id]; ok {
		t.UpdatedAt = at
		r.s.tickets[id] = t
	}
	return nil
}

func (r ticketRepo) All(_ context.Context) ([]model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.s.sortedTickets()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, m *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[m.TicketID]; !ok {
		return errs.TicketNotFound(m.TicketID)
	}
	m.ID = r.s.next()
	m.CreatedAt = r.s.now()
	r.s.messages = append(r.s.messages, *m)
	return nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID uint64) ([]model.Message, error) {
	return r.s.MessagesFor(ticketID), nil
}

// sortedTickets: копии тикетов, новые первыми. Вызывать под мьютексом.
func (s *Store) sortedTickets() []model.Ticket {
	out := make([]model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneTicket(t model.Ticket) model.Ticket {
	if t.RemoteThreadID != nil {
		v := *t.RemoteThreadID
		t.RemoteThreadID = &v
	}
	if t.RemoteIssueID != nil {
		v := *t.RemoteIssueID
		t.RemoteIssueID = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		t.ClosedAt = &v
	}
	t.Messages = nil
	return t
}

func containsStatus(list []model.TicketStatus, s model.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func matchFilter(t model.Ticket, filter map[string]interface{}) bool {
	for k, v := range filter {
		col := strings.TrimSpace(strings.TrimSuffix(k, "= ?"))
		want := toString(v)
		switch col {
		case "status":
			if string(t.Status) != want {
				return false
			}
		case "user_id":
			if strconv.FormatUint(t.UserID, 10) != want {
				return false
			}
		}
	}
	return true
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case model.TicketStatus:
		return string(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

type errDuplicate string

func (e errDuplicate) Error() string { return "duplicate key: " + string(e) }
