package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	httpapp "vkrMiniApp/backend/internal/app/http"
	"vkrMiniApp/backend/internal/config"
	"vkrMiniApp/backend/internal/http/handler"
	"vkrMiniApp/backend/internal/pkg/initdata"
	"vkrMiniApp/backend/internal/repository"
	"vkrMiniApp/backend/internal/repository/postgres"
	"vkrMiniApp/backend/internal/repository/sqlite"
	projectservice "vkrMiniApp/backend/internal/service/project"
	userservice "vkrMiniApp/backend/internal/service/user"
	"vkrMiniApp/pkg/logger/sl"
)

type App struct {
	HTTPServer *httpapp.App
	storage    repository.Storage
	log        *slog.Logger
}

func New(
	log *slog.Logger,
	cfg *config.Config,
) *App {
	storage, err := openStorage(log, cfg)
	if err != nil && !errors.Is(err, postgres.ErrNotConfigured) {
		panic(err)
	}

	svc := httpapp.Services{
		Env:              cfg.Env,
		Sessions:         handler.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL),
		BotInternalToken: cfg.Telegram.BotInternalToken,
	}

	if cfg.Telegram.BotToken != "" {
		svc.Verifier = initdata.New(cfg.Telegram.BotToken, cfg.Auth.MaxAge)
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, /auth/telegram will answer 503")
	}

	if cfg.Telegram.BotInternalToken == "" {
		log.Warn("BOT_INTERNAL_TOKEN is not set, /bot/chat-project will answer 503")
	}

	if storage != nil {
		svc.Users = userservice.New(log, storage)
		svc.Projects = projectservice.New(log, storage, storage)
	} else {
		log.Warn("database is not configured, storage endpoints will answer 503", sl.Err(err))
	}

	return &App{
		HTTPServer: httpapp.New(log, &cfg.HTTP, svc),
		storage:    storage,
		log:        log,
	}
}

func openStorage(log *slog.Logger, cfg *config.Config) (repository.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		log.Info("using sqlite storage", slog.String("path", cfg.SQLite.Path))

		storage, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}

		return storage, nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := postgres.NewConnPool(ctx, &cfg.Postgres)
		if err != nil {
			return nil, err
		}

		log.Info("using postgres storage")

		return postgres.New(pool), nil
	}
}

// Stop shuts the HTTP server down and then releases the storage.
func (a *App) Stop() {
	a.HTTPServer.Stop()

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.log.Error("failed to close storage", sl.Err(err))
		}
	}
}
