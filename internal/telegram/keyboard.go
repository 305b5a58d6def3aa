package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sakaguchiii/bus-notification/internal/conversation"
)

const buttonsPerRow = 2

// renderReply builds a message with an inline keyboard of the reply options.
func renderReply(chatID int64, reply conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Options) > 0 {
		msg.ReplyMarkup = optionsKeyboard(reply.Options)
	}
	return msg
}

// optionsKeyboard lays options out two per row, in order.
func optionsKeyboard(opts []conversation.Option) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(opts); i += buttonsPerRow {
		end := min(i+buttonsPerRow, len(opts))
		row := make([]tgbotapi.InlineKeyboardButton, 0, end-i)
		for _, o := range opts[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
