package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/model"
)

const (
	ButtonCreateTicket = "Create new ticket"
	ButtonSelectTicket = "Select existing ticket"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCreateTicket)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonSelectTicket)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", CallbackConfirm),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", CallbackCancel),
		),
	)
}

// TicketButtonLabel: название тикета (или "Ticket #id") с пометкой " -new" для статуса new.
func TicketButtonLabel(t *model.Ticket) string {
	label := t.Title
	if label == "" {
		label = fmt.Sprintf("Ticket #%d", t.ID)
	}
	if t.Status == model.TicketStatusNew {
		label += " -new"
	}
	return label
}

func ticketsKeyboard(tickets []model.Ticket) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(TicketButtonLabel(t), fmt.Sprintf("%s%d", callbackTicketPrefix, t.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
