package app

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vkrMiniApp/bot/internal/config"
	"vkrMiniApp/bot/internal/pkg/backendclient"
	"vkrMiniApp/bot/internal/telegram"
)

type App struct {
	log     *slog.Logger
	bot     *tgbotapi.BotAPI
	handler *telegram.Handler
}

func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	backend := backendclient.New(backendclient.Config{
		URL:           cfg.Backend.URL,
		InternalToken: cfg.Backend.InternalToken,
		Timeout:       cfg.Backend.Timeout,
	})

	handler := telegram.NewHandler(log, bot, backend, telegram.Config{
		WebAppURL:        cfg.Telegram.WebAppURL,
		BotUsername:      cfg.Telegram.BotUsername,
		MiniAppShortName: cfg.Telegram.MiniAppShortName,
	})

	return &App{
		log:     log,
		bot:     bot,
		handler: handler,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting telegram bot")
	return telegram.Start(ctx, a.log, a.bot, a.handler)
}
