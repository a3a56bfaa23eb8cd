package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"market-monitor/internal/alertlog"
	"market-monitor/internal/analysis"
	"market-monitor/internal/feed"
	"market-monitor/internal/logger"
	"market-monitor/internal/monitor"
	"market-monitor/internal/stats"
	"market-monitor/internal/store"
	"market-monitor/internal/telegram"
	"market-monitor/internal/trace"
)

// initializeSystem loads the environment file and initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// application bundles the long-lived pieces main starts and stops.
type application struct {
	monitor   *monitor.Monitor
	commander *telegram.Commander
}

// buildApplication wires feeds, classifier, alert channel and stats into a
// ready-to-start monitor.
func buildApplication(ctx context.Context, cfg *store.Config) (*application, error) {
	st := stats.New()

	var audit *alertlog.Log
	if cfg.AlertLog.Dir != "" {
		audit = alertlog.New(cfg.AlertLog.Dir)
	}

	channel, bot, err := buildChannel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	producers := buildProducers(ctx, cfg)
	if len(producers) == 0 {
		return nil, errors.New("no usable feed sources configured")
	}

	dispatcher := telegram.NewDispatcher(channel, st, audit)
	classifier := analysis.New(cfg)

	app := &application{
		monitor: monitor.New(cfg, producers, classifier, dispatcher, st, audit),
	}

	if err := telegram.Announce(ctx, channel); err != nil {
		logger.Warn(ctx, "Failed to send startup message", "error", err)
	}

	if bot != nil && cfg.Telegram.Commands {
		app.commander = telegram.NewCommander(bot, st)
		go app.commander.Run(ctx)
	}

	return app, nil
}

// buildChannel returns the alert channel and, in LIVE mode, the connected
// bot instance for the command loop.
func buildChannel(ctx context.Context, cfg *store.Config) (telegram.Channel, *tgbotapi.BotAPI, error) {
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - alerts will be logged, not sent")
		return telegram.LogChannel{}, nil, nil
	}

	token := os.Getenv(cfg.Telegram.TokenEnv)
	if token == "" {
		return nil, nil, fmt.Errorf("telegram bot token env %s is not set", cfg.Telegram.TokenEnv)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logger.Info(ctx, "Connected to Telegram", "bot_username", bot.Self.UserName)

	return telegram.NewBotChannel(bot, cfg.Telegram.ChatID, cfg.Telegram.TopicID), bot, nil
}

// buildProducers assembles one producer per configured feed kind. A feed
// with incomplete configuration is skipped with a warning rather than
// failing startup.
func buildProducers(ctx context.Context, cfg *store.Config) []monitor.Producer {
	var producers []monitor.Producer

	if len(cfg.Tweets.Handles) > 0 {
		if cfg.Tweets.BaseURL == "" {
			logger.Warn(ctx, "Tweet handles configured without a base URL - tweet feed disabled")
		} else {
			producers = append(producers, feed.NewTweetFetcher(cfg))
			logger.Info(ctx, "Tweet feed enabled",
				"handles", len(cfg.Tweets.Handles), "poll_seconds", cfg.Tweets.PollSeconds)
		}
	}

	if len(cfg.News.Sources) > 0 {
		producers = append(producers, feed.NewScraper(cfg))
		logger.Info(ctx, "News feed enabled",
			"sources", len(cfg.News.Sources), "poll_seconds", cfg.News.PollSeconds)
	}

	return producers
}
