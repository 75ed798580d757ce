package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/session"
	"go.uber.org/zap"
)

// stepAny: переход, доступный из любого состояния.
const stepAny session.Step = "*"

type route struct {
	step session.Step
	kind EventKind
}

type handlerFunc func(ctx context.Context, ev Event, st session.State) error

func (b *Bot) buildRoutes() map[route]handlerFunc {
	return map[route]handlerFunc{
		{stepAny, EventStart}:        b.onStart,
		{stepAny, EventMenuCreate}:   b.onMenuCreate,
		{stepAny, EventMenuSelect}:   b.onMenuSelect,
		{stepAny, EventSelectTicket}: b.onSelectTicket,
		{stepAny, EventConfirm}:      b.onNothingToConfirm,
		{stepAny, EventCancel}:       b.onNothingToConfirm,
		{stepAny, EventUnsupported}:  b.onUnsupported,

		{session.StepIdle, EventText}: b.onFreeText,

		{session.StepWaitingFullName, EventText}: b.onFullName,
		{session.StepWaitingCompany, EventText}:  b.onCompany,
		{session.StepWaitingShop, EventText}:     b.onShop,

		{session.StepWaitingTitle, EventText}:           b.onTitle,
		{session.StepWaitingDescription, EventText}:     b.onDescription,
		{session.StepWaitingConfirmation, EventText}:    b.onConfirmationText,
		{session.StepWaitingConfirmation, EventConfirm}: b.onConfirm,
		{session.StepWaitingConfirmation, EventCancel}:  b.onCancel,

		{session.StepSelectingTicket, EventText}: b.onSelectingText,
		{session.StepWaitingReply, EventText}:    b.onReply,
	}
}

func (b *Bot) lookup(step session.Step, kind EventKind) handlerFunc {
	if h, ok := b.routes[route{step, kind}]; ok {
		return h
	}
	return b.routes[route{stepAny, kind}]
}

// Dispatch выполняет один переход. Любая ошибка или паника сбрасывает состояние диалога.
// События одного чата не должны обрабатываться параллельно (Run гарантирует это очередью).
func (b *Bot) Dispatch(ctx context.Context, ev Event) {
	defer b.answerCallback(ev)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			b.log.Error("bot handler panic", zap.Int64("chat_id", ev.ChatID), zap.Any("panic", r), zap.Stack("stack"))
		}
		if err != nil {
			b.fail(ctx, ev, err)
		}
	}()

	var st session.State
	st, err = b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		return
	}
	h := b.lookup(st.Step(), ev.Kind)
	if h == nil {
		b.log.Debug("no transition", zap.String("step", string(st.Step())), zap.String("event", string(ev.Kind)))
		return
	}
	err = h(ctx, ev, st)
}

func (b *Bot) fail(ctx context.Context, ev Event, err error) {
	log := b.log.With(zap.Int64("chat_id", ev.ChatID), zap.String("event", string(ev.Kind)))
	if cerr := b.sessions.Clear(ctx, ev.ChatID); cerr != nil {
		log.Error("clear session after failure", zap.Error(cerr))
	}
	switch {
	case errors.Is(err, errs.ErrRemote):
		log.Error("remote system failure", zap.String("system", errs.RemoteSystem(err)), zap.Error(err))
		b.send(ev.ChatID, textErrRemote, mainKeyboard())
	case errors.Is(err, errs.ErrNotFound):
		log.Warn("referenced entity missing", zap.Error(err))
		b.send(ev.ChatID, textErrNotFound, nil)
	case errors.Is(err, errs.ErrInvalidTransition):
		log.Warn("invalid transition", zap.Error(err))
		b.send(ev.ChatID, textErrTransition, mainKeyboard())
	default:
		log.Error("bot handler failed", zap.Error(err))
		b.send(ev.ChatID, textErrInternal, mainKeyboard())
	}
}
