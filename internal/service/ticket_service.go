package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/kafka"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/relay"
	"github.com/psds-microservice/support-bot/internal/repository"
	"go.uber.org/zap"
)

const (
	EventTicketCreated   = "ticket.created"
	EventTicketActivated = "ticket.activated"
	EventTicketCanceled  = "ticket.canceled"
	EventTicketClosed    = "ticket.closed"
	EventTicketMessage   = "ticket.message"
	EventTicketSnapshot  = "ticket.snapshot"
)

const eventTimeout = 5 * time.Second

// TicketOptions: политика «текущего» тикета и порядок сохранения/отправки.
type TicketOptions struct {
	ActivePolicy config.ActiveTicketPolicy
	ActiveWindow time.Duration
	RelayOrder   config.RelayOrder
}

// TicketService: жизненный цикл тикета и маршрутизация сообщений.
type TicketService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	messages repository.MessageRepository
	outbound *relay.Outbound
	events   kafka.TicketEventProducer
	opts     TicketOptions
	log      *zap.Logger
	now      func() time.Time
}

// NewTicketService. events может быть nil: тогда события не публикуются.
func NewTicketService(
	tickets repository.TicketRepository,
	users repository.UserRepository,
	messages repository.MessageRepository,
	outbound *relay.Outbound,
	events kafka.TicketEventProducer,
	opts TicketOptions,
	log *zap.Logger,
) *TicketService {
	if opts.ActivePolicy == "" {
		opts.ActivePolicy = config.PolicyStatus
	}
	if opts.RelayOrder == "" {
		opts.RelayOrder = config.PersistFirst
	}
	return &TicketService{
		tickets:  tickets,
		users:    users,
		messages: messages,
		outbound: outbound,
		events:   events,
		opts:     opts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateTitle обрезает пробелы и проверяет длину в символах.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &errs.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(title) > model.TitleMaxLen {
		return "", &errs.ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", model.TitleMaxLen)}
	}
	return title, nil
}

// CreatePendingTicket сохраняет тикет без внешних идентификаторов.
func (s *TicketService) CreatePendingTicket(ctx context.Context, user *model.User, title, description string) (*model.Ticket, error) {
	title, err := ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &errs.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	t := &model.Ticket{
		UserID:      user.ID,
		Title:       title,
		Description: description,
		Status:      model.TicketStatusPending,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info("ticket created", zap.Uint64("ticket_id", t.ID), zap.Uint64("user_id", user.ID))
	s.publish(EventTicketCreated, t)
	return t, nil
}

// CompositeTitle собирает заголовок треда и задачи "#<id> <имя>: <название>".
func CompositeTitle(t *model.Ticket, u *model.User) string {
	return fmt.Sprintf("#%d %s: %s", t.ID, u.DisplayName, t.Title)
}

// ActivateTicket публикует pending-тикет в Mattermost и Plane и сохраняет оба идентификатора одним UPDATE.
// При любой ошибке внешней системы тикет остаётся pending.
func (s *TicketService) ActivateTicket(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TicketStatusPending {
		return nil, fmt.Errorf("activate ticket %d in status %s: %w", t.ID, t.Status, errs.ErrInvalidTransition)
	}
	user, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	threadID, issueID, err := s.outbound.PushNewTicket(ctx, CompositeTitle(t, user), t.Description)
	if err != nil {
		s.log.Error("ticket activation failed", zap.Uint64("ticket_id", t.ID), zap.String("system", errs.RemoteSystem(err)), zap.Error(err))
		return nil, err
	}
	if err := s.tickets.Activate(ctx, t.ID, threadID, issueID); err != nil {
		// Тред и задача уже созданы; повторная активация создаст их заново.
		s.log.Error("ticket activation not persisted",
			zap.Uint64("ticket_id", t.ID), zap.String("thread_id", threadID), zap.String("issue_id", issueID), zap.Error(err))
		return nil, err
	}
	t, err = s.tickets.GetByID(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket activated", zap.Uint64("ticket_id", t.ID), zap.String("thread_id", threadID), zap.String("issue_id", issueID))
	s.publish(EventTicketActivated, t)
	return t, nil
}

// CancelTicket допустим только из pending, внешних вызовов нет.
func (s *TicketService) CancelTicket(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	if err := s.tickets.Transition(ctx, ticketID, []model.TicketStatus{model.TicketStatusPending}, model.TicketStatusCanceled, s.now()); err != nil {
		return nil, err
	}
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket canceled", zap.Uint64("ticket_id", t.ID))
	s.publish(EventTicketCanceled, t)
	return t, nil
}

// CloseTicket ставит closed и closed_at. Повторное закрытие ничего не меняет.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TicketStatusClosed {
		return t, nil
	}
	from := []model.TicketStatus{model.TicketStatusPending, model.TicketStatusNew, model.TicketStatusActive}
	if err := s.tickets.Transition(ctx, ticketID, from, model.TicketStatusClosed, s.now()); err != nil {
		return nil, err
	}
	if t, err = s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	s.log.Info("ticket closed", zap.Uint64("ticket_id", t.ID))
	s.publish(EventTicketClosed, t)
	return t, nil
}

// ResolveActiveTicketForUser: последний созданный тикет в статусе new/active; для политики window
// дополнительно updated_at не старше окна. (nil, nil), если такого нет.
func (s *TicketService) ResolveActiveTicketForUser(ctx context.Context, userID uint64) (*model.Ticket, error) {
	q := repository.TicketQuery{UserID: userID, Statuses: model.OpenStatuses}
	if s.opts.ActivePolicy == config.PolicyWindow {
		q.UpdatedSince = s.now().Add(-s.opts.ActiveWindow)
	}
	return s.tickets.FindLatest(ctx, q)
}

func (s *TicketService) ResolveTicketByRemoteThreadID(ctx context.Context, rootID string) (*model.Ticket, error) {
	return s.tickets.FindByRemoteThreadID(ctx, rootID)
}

// AddMessage добавляет сообщение в историю. Сообщения пользователя уходят в Mattermost и Plane
// в порядке RelayOrder; сообщения поддержки не отправляются обратно.
func (s *TicketService) AddMessage(ctx context.Context, t *model.Ticket, text string, sender model.SenderKind) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &errs.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if sender == model.SenderSupport {
		return s.persistMessage(ctx, t, text, sender)
	}

	if s.opts.RelayOrder == config.RelayFirst {
		if err := s.outbound.PushFollowup(ctx, t.ThreadID(), t.IssueID(), text); err != nil {
			s.log.Error("follow-up relay failed", zap.Uint64("ticket_id", t.ID), zap.Error(err))
			return nil, err
		}
		return s.persistMessage(ctx, t, text, sender)
	}

	m, err := s.persistMessage(ctx, t, text, sender)
	if err != nil {
		return nil, err
	}
	if err := s.outbound.PushFollowup(ctx, t.ThreadID(), t.IssueID(), text); err != nil {
		s.log.Error("follow-up relay failed", zap.Uint64("ticket_id", t.ID), zap.Uint64("message_id", m.ID), zap.Error(err))
		return m, err
	}
	return m, nil
}

func (s *TicketService) persistMessage(ctx context.Context, t *model.Ticket, text string, sender model.SenderKind) (*model.Message, error) {
	m := &model.Message{TicketID: t.ID, SenderKind: sender, Content: text}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := s.tickets.Touch(ctx, t.ID, s.now()); err != nil {
		s.log.Warn("touch ticket", zap.Uint64("ticket_id", t.ID), zap.Error(err))
	}
	s.publishPayload(EventTicketMessage, map[string]interface{}{
		"ticket_id":   t.ID,
		"message_id":  m.ID,
		"sender_kind": string(sender),
		"content":     m.Content,
	})
	return m, nil
}

// ListUserTickets: тикеты пользователя в статусах new/active, новые первыми.
func (s *TicketService) ListUserTickets(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	all, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Status.IsOpen() {
			out = append(out, t)
		}
	}
	return out, nil
}

// SelectTicket проверяет, что тикет принадлежит пользователю и ещё принимает сообщения.
func (s *TicketService) SelectTicket(ctx context.Context, userID, ticketID uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, errs.TicketNotFound(ticketID)
	}
	if !t.Status.IsOpen() {
		return nil, fmt.Errorf("select ticket %d in status %s: %w", t.ID, t.Status, errs.ErrInvalidTransition)
	}
	return t, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	return s.tickets.GetWithMessages(ctx, id)
}

func (s *TicketService) List(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]model.Ticket, int64, error) {
	return s.tickets.List(ctx, filter, limit, offset)
}

// RepublishAll отправляет ticket.snapshot по каждому тикету. Возвращает число тикетов.
func (s *TicketService) RepublishAll(ctx context.Context) (int, error) {
	all, err := s.tickets.All(ctx)
	if err != nil {
		return 0, err
	}
	for i := range all {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		s.publish(EventTicketSnapshot, &all[i])
	}
	return len(all), nil
}

func ticketPayload(t *model.Ticket) map[string]interface{} {
	p := map[string]interface{}{
		"ticket_id":  t.ID,
		"user_id":    t.UserID,
		"title":      t.Title,
		"status":     string(t.Status),
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
	if id := t.ThreadID(); id != "" {
		p["remote_thread_id"] = id
	}
	if id := t.IssueID(); id != "" {
		p["remote_issue_id"] = id
	}
	if t.ClosedAt != nil {
		p["closed_at"] = *t.ClosedAt
	}
	return p
}

func (s *TicketService) publish(event string, t *model.Ticket) {
	s.publishPayload(event, ticketPayload(t))
}

// publishPayload не зависит от контекста запроса: отмена запроса не должна терять событие.
func (s *TicketService) publishPayload(event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	s.events.ProduceTicketEvent(ctx, event, payload)
}
