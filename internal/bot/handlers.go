package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/psds-microservice/support-bot/internal/session"
	"go.uber.org/zap"
)

// currentUser возвращает nil и просит пройти регистрацию, если пользователя нет.
func (b *Bot) currentUser(ctx context.Context, ev Event) (*model.User, error) {
	u, err := b.users.FindByChatID(ctx, ev.ChatID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		b.send(ev.ChatID, textNeedRegistration, nil)
	}
	return u, nil
}

func (b *Bot) onStart(ctx context.Context, ev Event, _ session.State) error {
	u, err := b.users.FindByChatID(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	if u != nil {
		if err := b.sessions.Clear(ctx, ev.ChatID); err != nil {
			return err
		}
		b.send(ev.ChatID, textWelcomeBack, mainKeyboard())
		return nil
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingFullName{}); err != nil {
		return err
	}
	b.send(ev.ChatID, textWelcomeNew, nil)
	return nil
}

func (b *Bot) onFullName(ctx context.Context, ev Event, _ session.State) error {
	name, err := service.ValidateFullName(ev.Text)
	if err != nil {
		b.send(ev.ChatID, textAskFullNameAgain, nil)
		return nil
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingCompany{FullName: name}); err != nil {
		return err
	}
	b.send(ev.ChatID, textAskCompany, nil)
	return nil
}

func (b *Bot) onCompany(ctx context.Context, ev Event, st session.State) error {
	cur := st.(session.WaitingCompany)
	company, err := service.ValidateRequired("company", ev.Text)
	if err != nil {
		b.send(ev.ChatID, textAskRequired, nil)
		return nil
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingShop{FullName: cur.FullName, Company: company}); err != nil {
		return err
	}
	b.send(ev.ChatID, textAskShop, nil)
	return nil
}

func (b *Bot) onShop(ctx context.Context, ev Event, st session.State) error {
	cur := st.(session.WaitingShop)
	shop, err := service.ValidateRequired("shop", ev.Text)
	if err != nil {
		b.send(ev.ChatID, textAskRequired, nil)
		return nil
	}
	u, _, err := b.users.Register(ctx, service.RegisterInput{
		ChatID:   ev.ChatID,
		Username: ev.Username,
		FullName: cur.FullName,
		Company:  cur.Company,
		Shop:     shop,
	})
	if err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, ev.ChatID); err != nil {
		return err
	}
	b.log.Info("registration completed", zap.Uint64("user_id", u.ID))
	b.send(ev.ChatID, textRegistered, mainKeyboard())
	return nil
}

func (b *Bot) onMenuCreate(ctx context.Context, ev Event, _ session.State) error {
	u, err := b.currentUser(ctx, ev)
	if err != nil || u == nil {
		return err
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingTitle{}); err != nil {
		return err
	}
	b.send(ev.ChatID, textAskTitle, nil)
	return nil
}

func (b *Bot) onTitle(ctx context.Context, ev Event, _ session.State) error {
	title, err := service.ValidateTitle(ev.Text)
	if err != nil {
		b.send(ev.ChatID, textTitleTooLong, nil)
		return nil
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingDescription{Title: title}); err != nil {
		return err
	}
	b.send(ev.ChatID, textAskDescription, nil)
	return nil
}

// onDescription сохраняет pending-тикет и ждёт подтверждения.
func (b *Bot) onDescription(ctx context.Context, ev Event, st session.State) error {
	cur := st.(session.WaitingDescription)
	u, err := b.users.FindByChatID(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	if u == nil {
		return errs.UserNotFound(ev.ChatID)
	}
	t, err := b.tickets.CreatePendingTicket(ctx, u, cur.Title, ev.Text)
	if errors.Is(err, errs.ErrValidation) {
		b.send(ev.ChatID, textAskDescription, nil)
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingConfirmation{TicketID: t.ID}); err != nil {
		return err
	}
	summary := fmt.Sprintf("I will create a new ticket:\nTitle: %s\nDescription: %s\n\n%s", t.Title, t.Description, textAskConfirmation)
	b.send(ev.ChatID, summary, confirmKeyboard())
	return nil
}

func (b *Bot) onConfirmationText(ctx context.Context, ev Event, st session.State) error {
	yes, ok := confirmAnswer(ev.Text)
	if !ok {
		b.send(ev.ChatID, textAskConfirmation, confirmKeyboard())
		return nil
	}
	if yes {
		return b.onConfirm(ctx, ev, st)
	}
	return b.onCancel(ctx, ev, st)
}

func (b *Bot) onConfirm(ctx context.Context, ev Event, st session.State) error {
	cur := st.(session.WaitingConfirmation)
	t, err := b.tickets.ActivateTicket(ctx, cur.TicketID)
	if err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, ev.ChatID); err != nil {
		return err
	}
	b.send(ev.ChatID, fmt.Sprintf("Ticket #%d has been created. We will look into it as soon as possible.\nYou can keep sending messages to this ticket.", t.ID), mainKeyboard())
	return nil
}

func (b *Bot) onCancel(ctx context.Context, ev Event, st session.State) error {
	cur := st.(session.WaitingConfirmation)
	if _, err := b.tickets.CancelTicket(ctx, cur.TicketID); err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, ev.ChatID); err != nil {
		return err
	}
	b.send(ev.ChatID, textCanceled, mainKeyboard())
	return nil
}

func (b *Bot) onNothingToConfirm(_ context.Context, ev Event, _ session.State) error {
	b.send(ev.ChatID, textNothingToConfirm, mainKeyboard())
	return nil
}

func (b *Bot) onMenuSelect(ctx context.Context, ev Event, _ session.State) error {
	u, err := b.currentUser(ctx, ev)
	if err != nil || u == nil {
		return err
	}
	tickets, err := b.tickets.ListUserTickets(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		if err := b.sessions.Clear(ctx, ev.ChatID); err != nil {
			return err
		}
		b.send(ev.ChatID, textNoTickets, mainKeyboard())
		return nil
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.SelectingTicket{}); err != nil {
		return err
	}
	b.send(ev.ChatID, textChooseTicket, ticketsKeyboard(tickets))
	return nil
}

func (b *Bot) onSelectTicket(ctx context.Context, ev Event, _ session.State) error {
	u, err := b.currentUser(ctx, ev)
	if err != nil || u == nil {
		return err
	}
	t, err := b.tickets.SelectTicket(ctx, u.ID, ev.TicketID)
	if err != nil {
		return err
	}
	if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingReply{TicketID: t.ID}); err != nil {
		return err
	}
	b.send(ev.ChatID, fmt.Sprintf("Selected ticket %q. Send your message:", TicketButtonLabel(t)), nil)
	return nil
}

func (b *Bot) onSelectingText(_ context.Context, ev Event, _ session.State) error {
	b.send(ev.ChatID, textChooseWithButtons, nil)
	return nil
}

func (b *Bot) onReply(ctx context.Context, ev Event, st session.State) error {
	cur := st.(session.WaitingReply)
	u, err := b.users.FindByChatID(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	if u == nil {
		return errs.UserNotFound(ev.ChatID)
	}
	t, err := b.tickets.SelectTicket(ctx, u.ID, cur.TicketID)
	if err != nil {
		return err
	}
	if _, err := b.tickets.AddMessage(ctx, t, ev.Text, model.SenderUser); err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, ev.ChatID); err != nil {
		return err
	}
	b.send(ev.ChatID, textAddedToSelected, mainKeyboard())
	return nil
}

// onFreeText дописывает текст в текущий тикет или начинает создание нового.
func (b *Bot) onFreeText(ctx context.Context, ev Event, _ session.State) error {
	u, err := b.currentUser(ctx, ev)
	if err != nil || u == nil {
		return err
	}
	t, err := b.tickets.ResolveActiveTicketForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if t == nil {
		if err := b.sessions.Set(ctx, ev.ChatID, session.WaitingTitle{}); err != nil {
			return err
		}
		b.send(ev.ChatID, textNoActiveTicket, nil)
		return nil
	}
	if _, err := b.tickets.AddMessage(ctx, t, ev.Text, model.SenderUser); err != nil {
		return err
	}
	b.send(ev.ChatID, textAddedToCurrent, nil)
	return nil
}

func (b *Bot) onUnsupported(_ context.Context, ev Event, _ session.State) error {
	b.send(ev.ChatID, textTextOnly, nil)
	return nil
}
