package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-monitor/internal/logger"
	"market-monitor/internal/stats"
)

// Commander long-polls bot updates and answers commands. Only /stats is
// handled; everything else is ignored.
type Commander struct {
	bot   *tgbotapi.BotAPI
	stats *stats.Stats
}

func NewCommander(bot *tgbotapi.BotAPI, st *stats.Stats) *Commander {
	return &Commander{bot: bot, stats: st}
}

// Run blocks until the context is cancelled.
func (c *Commander) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	logger.Info(ctx, "Command loop started", "bot", c.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.handle(ctx, update)
		}
	}
}

func (c *Commander) handle(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	switch update.Message.Command() {
	case "stats":
		reply := tgbotapi.NewMessage(update.Message.Chat.ID, RenderStats(c.stats.Snapshot()))
		reply.ParseMode = tgbotapi.ModeMarkdown
		reply.ReplyToMessageID = update.Message.MessageID
		if _, err := c.bot.Send(reply); err != nil {
			logger.ErrorWithErr(ctx, "Error sending stats reply", err)
		}
	}
}

// RenderStats formats the counters snapshot for the /stats command.
func RenderStats(snap stats.Snapshot) string {
	return fmt.Sprintf("📊 *Market Monitor Statistics*\n\n"+
		"🐦 Tweets processed: %d\n"+
		"🐦 Relevant tweets: %d\n"+
		"📰 News articles processed: %d\n"+
		"📰 Relevant news articles: %d\n\n"+
		"Last tweet check: %s\n"+
		"Last news check: %s",
		snap.TweetsProcessed,
		snap.TweetsRelevant,
		snap.NewsProcessed,
		snap.NewsRelevant,
		formatCheckTime(snap.LastTweetCheck),
		formatCheckTime(snap.LastNewsCheck),
	)
}

func formatCheckTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
