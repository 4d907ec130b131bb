// Package schema deploys the backend's PostgreSQL schema.
package schema

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
)

//go:embed schema.sql
var embedded []byte

var ErrEmptySchema = errors.New("schema is empty")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SQL returns the schema bundled with the binary.
func SQL() string {
	return string(embedded)
}

// Load reads a schema file from disk. A leading UTF-8 BOM is stripped because
// PostgreSQL rejects it.
func Load(path string) (string, error) {
	const op = "schema.Load"

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes.TrimPrefix(content, utf8BOM)), nil
}

// Apply executes the whole schema as one statement batch.
func Apply(ctx context.Context, db *sql.DB, schemaSQL string) error {
	const op = "schema.Apply"

	if len(bytes.TrimSpace([]byte(schemaSQL))) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptySchema)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
