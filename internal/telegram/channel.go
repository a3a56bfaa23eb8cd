// Package telegram sends monitor alerts to a Telegram chat and serves the
// bot's command surface.
package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-monitor/internal/logger"
)

const startupText = "🤖 Market Monitor bot started successfully!"

// Message is one outgoing alert: Markdown text plus an optional single
// inline URL button.
type Message struct {
	Text        string
	ButtonLabel string
	ButtonURL   string
}

// Channel delivers messages to the configured chat.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// BotChannel sends through the Telegram Bot API. Messages go to one chat,
// optionally into a forum topic.
type BotChannel struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	topicID int
}

var _ Channel = (*BotChannel)(nil)

func NewBotChannel(bot *tgbotapi.BotAPI, chatID int64, topicID int) *BotChannel {
	return &BotChannel{bot: bot, chatID: chatID, topicID: topicID}
}

// Send posts the message with Markdown parsing. The request is built from
// raw params because the typed sendMessage config has no message_thread_id
// field in this library version.
func (c *BotChannel) Send(ctx context.Context, msg Message) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", c.chatID)
	params.AddNonZero("message_thread_id", c.topicID)
	params["text"] = msg.Text
	params["parse_mode"] = tgbotapi.ModeMarkdown

	if msg.ButtonLabel != "" && msg.ButtonURL != "" {
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(msg.ButtonLabel, msg.ButtonURL),
			),
		)
		if err := params.AddInterface("reply_markup", markup); err != nil {
			return err
		}
	}

	_, err := c.bot.MakeRequest("sendMessage", params)
	return err
}

// LogChannel writes messages to the log instead of Telegram. Used in
// DRY_RUN mode.
type LogChannel struct{}

var _ Channel = LogChannel{}

func (LogChannel) Send(ctx context.Context, msg Message) error {
	logger.Info(ctx, "Dry run alert", "text", msg.Text, "button_url", msg.ButtonURL)
	return nil
}

// Announce sends the startup message so operators can confirm the bot can
// reach its chat.
func Announce(ctx context.Context, ch Channel) error {
	return ch.Send(ctx, Message{Text: startupText})
}
