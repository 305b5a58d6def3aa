package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Sender pushes plain text messages. It satisfies scheduler.Sender.
type Sender struct {
	bot *tgbotapi.BotAPI
}

// NewSender creates a Sender.
func NewSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{bot: bot}
}

// SendMessage sends a plain text message to the given chat.
func (s *Sender) SendMessage(chatID int64, text string) error {
	_, err := s.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
