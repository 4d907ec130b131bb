package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vkrMiniApp/backend/internal/repository"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Storage {
	return &Storage{db: pool}
}

func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

func (s *Storage) InTx(ctx context.Context, fn func(tx repository.ProjectTx) error) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(t pgx.Tx) error {
		return fn(&projectTx{q: t})
	})
}

func dbErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}

	return fmt.Errorf("database error: %w", err)
}
