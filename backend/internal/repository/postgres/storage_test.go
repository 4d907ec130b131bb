package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkrMiniApp/backend/internal/repository"
	"vkrMiniApp/backend/internal/repository/postgres/schema"
	"vkrMiniApp/backend/internal/repository/storetest"
)

// TestStorage needs a disposable database; its tables are truncated per case.
func TestStorage(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL is not set")
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, schema.Apply(ctx, db, schema.SQL()))

	storetest.Run(t, func(t *testing.T) repository.Storage {
		_, err := db.ExecContext(ctx, `TRUNCATE project_members, projects, users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)

		pool, err := NewConnPool(ctx, &Config{URL: dsn})
		require.NoError(t, err)

		return New(pool)
	})
}

func TestConfig_ConnString(t *testing.T) {
	t.Run("url wins", func(t *testing.T) {
		c := Config{URL: "postgres://a@b/c", DBName: "x", User: "y", Pass: "z"}
		got, err := c.ConnString()
		require.NoError(t, err)
		assert.Equal(t, "postgres://a@b/c", got)
	})

	t.Run("assembled", func(t *testing.T) {
		c := Config{Host: "db", Port: "6432", DBName: "vkr", User: "app", Pass: "p@ss"}
		got, err := c.ConnString()
		require.NoError(t, err)
		assert.Equal(t, "postgresql://app:p%40ss@db:6432/vkr", got)
	})

	t.Run("missing", func(t *testing.T) {
		c := Config{Host: "db", Port: "5432", DBName: "vkr"}
		_, err := c.ConnString()
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestNewConnPool_NotConfigured(t *testing.T) {
	_, err := NewConnPool(context.Background(), &Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
