package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type EventKind string

const (
	EventStart        EventKind = "start"
	EventText         EventKind = "text"
	EventMenuCreate   EventKind = "menu_create"
	EventMenuSelect   EventKind = "menu_select"
	EventConfirm      EventKind = "confirm"
	EventCancel       EventKind = "cancel"
	EventSelectTicket EventKind = "select_ticket"
	EventUnsupported  EventKind = "unsupported"
)

const (
	CallbackConfirm      = "confirm_ticket"
	CallbackCancel       = "cancel_ticket"
	callbackTicketPrefix = "ticket_"
)

// Event: входящее действие пользователя, сведённое к виду, по которому выбирается переход.
type Event struct {
	Kind       EventKind
	ChatID     int64
	Username   string
	Text       string
	TicketID   uint64
	CallbackID string
}

// EventFromUpdate классифицирует апдейт. false: апдейт не относится к боту (например, edited_message).
func EventFromUpdate(u tgbotapi.Update) (Event, bool) {
	switch {
	case u.Message != nil:
		return eventFromMessage(u.Message), true
	case u.CallbackQuery != nil:
		return eventFromCallback(u.CallbackQuery)
	}
	return Event{}, false
}

func eventFromMessage(m *tgbotapi.Message) Event {
	ev := Event{Kind: EventText, Text: m.Text}
	if m.Chat != nil {
		ev.ChatID = m.Chat.ID
	}
	if m.From != nil {
		ev.Username = m.From.UserName
		if ev.ChatID == 0 {
			ev.ChatID = m.From.ID
		}
	}
	switch {
	case m.IsCommand() && m.Command() == "start":
		ev.Kind = EventStart
	case strings.TrimSpace(m.Text) == "":
		ev.Kind = EventUnsupported
	case m.Text == ButtonCreateTicket:
		ev.Kind = EventMenuCreate
	case m.Text == ButtonSelectTicket:
		ev.Kind = EventMenuSelect
	}
	return ev
}

func eventFromCallback(q *tgbotapi.CallbackQuery) (Event, bool) {
	ev := Event{CallbackID: q.ID}
	if q.From != nil {
		ev.ChatID = q.From.ID
		ev.Username = q.From.UserName
	}
	if q.Message != nil && q.Message.Chat != nil {
		ev.ChatID = q.Message.Chat.ID
	}
	switch {
	case q.Data == CallbackConfirm:
		ev.Kind = EventConfirm
	case q.Data == CallbackCancel:
		ev.Kind = EventCancel
	case strings.HasPrefix(q.Data, callbackTicketPrefix):
		id, err := strconv.ParseUint(strings.TrimPrefix(q.Data, callbackTicketPrefix), 10, 64)
		if err != nil {
			return Event{}, false
		}
		ev.Kind = EventSelectTicket
		ev.TicketID = id
	default:
		return Event{}, false
	}
	return ev, true
}

// confirmAnswer разбирает текстовый вариант подтверждения: да/нет, yes/no.
func confirmAnswer(text string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "да", "д":
		return true, true
	case "no", "n", "нет", "н":
		return false, true
	}
	return false, false
}
