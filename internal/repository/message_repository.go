package repository

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/psds-microservice/support-bot/internal/model"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, m *model.Message) error {
	return pkgerrors.WithStack(r.db.WithContext(ctx).Create(m).Error)
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID uint64) ([]model.Message, error) {
	var items []model.Message
	err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").Find(&items).Error
	return items, pkgerrors.WithStack(err)
}
