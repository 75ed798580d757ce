package repository

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
)

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, t *model.Ticket) error {
	return pkgerrors.WithStack(r.db.WithContext(ctx).Create(t).Error)
}

func (r *ticketRepository) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.TicketNotFound(id)
		}
		return nil, pkgerrors.WithStack(err)
	}
	return &t, nil
}

func (r *ticketRepository) GetWithMessages(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.TicketNotFound(id)
		}
		return nil, pkgerrors.WithStack(err)
	}
	return &t, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	var items []model.Ticket
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Find(&items).Error
	return items, pkgerrors.WithStack(err)
}

func (r *ticketRepository) List(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]model.Ticket, int64, error) {
	var items []model.Ticket
	var total int64
	tx := r.db.WithContext(ctx).Model(&model.Ticket{})
	for k, v := range filter {
		tx = tx.Where(k, v)
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.WithStack(err)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, 0, pkgerrors.WithStack(err)
	}
	return items, total, nil
}

func (r *ticketRepository) FindLatest(ctx context.Context, q TicketQuery) (*model.Ticket, error) {
	tx := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if !q.UpdatedSince.IsZero() {
		tx = tx.Where("updated_at >= ?", q.UpdatedSince)
	}
	var t model.Ticket
	if err := tx.Order("created_at DESC, id DESC").First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.WithStack(err)
	}
	return &t, nil
}

func (r *ticketRepository) FindByRemoteThreadID(ctx context.Context, threadID string) (*model.Ticket, error) {
	var t model.Ticket
	if err := r.db.WithContext(ctx).Where("remote_thread_id = ?", threadID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.WithStack(err)
	}
	return &t, nil
}

func (r *ticketRepository) Activate(ctx context.Context, id uint64, threadID, issueID string) error {
	res := r.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ? AND status = ?", id, model.TicketStatusPending).
		Updates(map[string]interface{}{
			"remote_thread_id": threadID,
			"remote_issue_id":  issueID,
			"status":           model.TicketStatusActive,
		})
	if res.Error != nil {
		return pkgerrors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *ticketRepository) Transition(ctx context.Context, id uint64, from []model.TicketStatus, to model.TicketStatus, at time.Time) error {
	changes := map[string]interface{}{"status": to, "updated_at": at}
	if to == model.TicketStatusClosed {
		changes["closed_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(changes)
	if res.Error != nil {
		return pkgerrors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *ticketRepository) Touch(ctx context.Context, id uint64, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Ticket{}).Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
	return pkgerrors.WithStack(err)
}

func (r *ticketRepository) All(ctx context.Context) ([]model.Ticket, error) {
	var items []model.Ticket
	err := r.db.WithContext(ctx).Order("id ASC").Find(&items).Error
	return items, pkgerrors.WithStack(err)
}

// UPDATE ничего не затронул: тикета нет или он в другом статусе.
func (r *ticketRepository) missingOrConflict(ctx context.Context, id uint64) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return errs.ErrInvalidTransition
}
