package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
)

const userColumns = `id, tg_id, username, first_name, last_name, photo_url, created_at, last_login_at`

func (s *Storage) UpsertUser(ctx context.Context, u models.UserUpsert) (*models.User, error) {
	query := `
		INSERT INTO users (tg_id, username, first_name, last_name, photo_url, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (tg_id) DO UPDATE SET
			username      = EXCLUDED.username,
			first_name    = EXCLUDED.first_name,
			last_name     = EXCLUDED.last_name,
			photo_url     = EXCLUDED.photo_url,
			last_login_at = EXCLUDED.last_login_at
		RETURNING ` + userColumns

	loginAt := u.LoginAt
	if loginAt.IsZero() {
		loginAt = time.Now()
	}

	user, err := scanUser(s.db.QueryRow(ctx, query, u.TgID, u.Username, u.FirstName, u.LastName, u.PhotoURL, loginAt))
	if err != nil {
		return nil, dbErr(err)
	}

	return user, nil
}

func (s *Storage) UserByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tg_id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, tgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, dbErr(err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TgID, &u.Username, &u.FirstName, &u.LastName, &u.PhotoURL, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}
