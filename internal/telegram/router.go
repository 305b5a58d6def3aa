package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/conversation"
)

// Handler is the conversation entry point the router feeds.
type Handler interface {
	Handle(ctx context.Context, in conversation.Input) conversation.Reply
}

// Router wires Telegram updates to the conversation machine and renders
// its replies.
type Router struct {
	bot  *tgbotapi.BotAPI
	log  *zap.Logger
	conv Handler
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, conv Handler) *Router {
	return &Router{bot: bot, log: log, conv: conv}
}

// HandleUpdate routes a single update to the conversation machine.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	in, ok := toInput(upd)
	if !ok {
		return
	}
	if upd.CallbackQuery != nil {
		// Stops the button spinner; the reply comes as a new message.
		if _, err := r.bot.Request(tgbotapi.NewCallback(upd.CallbackQuery.ID, "")); err != nil {
			r.log.Debug("answer callback failed", zap.Error(err))
		}
	}

	reply := r.conv.Handle(ctx, in)
	if reply.Text == "" {
		return
	}
	if _, err := r.bot.Send(renderReply(in.UserID, reply)); err != nil {
		r.log.Error("send reply failed", zap.Int64("chatID", in.UserID), zap.Error(err))
	}
}

// toInput converts an update into a conversation input. Only private text
// messages and inline button callbacks are accepted.
func toInput(upd tgbotapi.Update) (conversation.Input, bool) {
	if msg := upd.Message; msg != nil {
		if msg.Chat == nil || msg.Text == "" {
			return conversation.Input{}, false
		}
		return conversation.Input{
			UserID: msg.Chat.ID,
			Kind:   conversation.KindText,
			Text:   strings.TrimSpace(msg.Text),
		}, true
	}
	if cb := upd.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			return conversation.Input{}, false
		}
		return conversation.Input{
			UserID: cb.Message.Chat.ID,
			Kind:   conversation.KindPostback,
			Text:   cb.Data,
		}, true
	}
	return conversation.Input{}, false
}
