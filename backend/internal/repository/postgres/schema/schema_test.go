package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_ExecutesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(SQL())).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Apply(context.Background(), db, SQL()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_PropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("permission denied")
	mock.ExpectExec(".*").WillReturnError(boom)

	err = Apply(context.Background(), db, "CREATE TABLE x (id int);")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_EmptySchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = Apply(context.Background(), db, "  \n\t")
	assert.ErrorIs(t, err, ErrEmptySchema)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedSchemaDefinesTables(t *testing.T) {
	for _, table := range []string{"users", "projects", "project_members"} {
		assert.Contains(t, SQL(), "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, SQL(), "ON DELETE CASCADE")
	assert.Contains(t, SQL(), "project_members_one_owner_idx")
}

func TestLoad_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, "SELECT 1;"...), 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", got)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.sql"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
