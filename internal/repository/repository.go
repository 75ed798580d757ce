package repository

import (
	"context"
	"time"

	"github.com/psds-microservice/support-bot/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает *errs.NotFoundError, если пользователя нет.
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	// FindByExternalChatID возвращает (nil, nil), если пользователь не зарегистрирован.
	FindByExternalChatID(ctx context.Context, chatID int64) (*model.User, error)
}

// TicketQuery: фильтр поиска «текущего» тикета пользователя.
type TicketQuery struct {
	UserID   uint64
	Statuses []model.TicketStatus
	// UpdatedSince: если не нулевой, тикет должен обновляться не раньше этого момента.
	UpdatedSince time.Time
}

type TicketRepository interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	// GetWithMessages подгружает историю сообщений по возрастанию времени.
	GetWithMessages(ctx context.Context, id uint64) (*model.Ticket, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
	List(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]model.Ticket, int64, error)
	// FindLatest: последний по created_at тикет, подходящий под запрос, или (nil, nil).
	FindLatest(ctx context.Context, q TicketQuery) (*model.Ticket, error)
	FindByRemoteThreadID(ctx context.Context, threadID string) (*model.Ticket, error)
	// Activate записывает оба внешних идентификатора и статус active одним UPDATE при статусе pending.
	Activate(ctx context.Context, id uint64, threadID, issueID string) error
	// Transition меняет статус, если текущий входит в from. closed_at ставится при переходе в closed.
	Transition(ctx context.Context, id uint64, from []model.TicketStatus, to model.TicketStatus, at time.Time) error
	Touch(ctx context.Context, id uint64, at time.Time) error
	All(ctx context.Context) ([]model.Ticket, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	ListByTicket(ctx context.Context, ticketID uint64) ([]model.Message, error)
}
