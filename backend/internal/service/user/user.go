package userservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
	"vkrMiniApp/pkg/logger/sl"
)

var ErrUserNotFound = repository.ErrUserNotFound

type User struct {
	log     *slog.Logger
	storage repository.UserStorage
	now     func() time.Time
}

func New(log *slog.Logger, storage repository.UserStorage) *User {
	return &User{
		log:     log,
		storage: storage,
		now:     time.Now,
	}
}

// Upsert stores the verified Telegram user, refreshing profile fields and
// last_login_at. The record is created on first sight.
func (u *User) Upsert(ctx context.Context, tgUser models.TelegramUser) (*models.User, error) {
	const op = "User.Upsert"

	log := u.log.With(
		slog.String("op", op),
		slog.Int64("tg_id", tgUser.ID),
	)

	user, err := u.storage.UpsertUser(ctx, models.UserUpsert{
		TgID:      tgUser.ID,
		Username:  nonEmpty(tgUser.Username),
		FirstName: tgUser.FirstName,
		LastName:  nonEmpty(tgUser.LastName),
		PhotoURL:  nonEmpty(tgUser.PhotoURL),
		LoginAt:   u.now(),
	})
	if err != nil {
		log.Error("failed to upsert user", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("user upserted", slog.Int64("user_id", user.ID))

	return user, nil
}

func (u *User) Find(ctx context.Context, tgID int64) (*models.User, error) {
	const op = "User.Find"

	user, err := u.storage.UserByTgID(ctx, tgID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			u.log.Error("failed to get user", slog.String("op", op), sl.Err(err))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
