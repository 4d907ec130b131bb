package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotConfigured = errors.New("database config is missing: set DATABASE_URL or POSTGRES_POSTGRES_DB/POSTGRES_POSTGRES_USER/POSTGRES_POSTGRES_PASSWORD")

type Config struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	DBName   string `yaml:"db_name" env:"POSTGRES_POSTGRES_DB"`
	User     string `yaml:"user" env:"POSTGRES_POSTGRES_USER"`
	Pass     string `yaml:"password" env:"POSTGRES_POSTGRES_PASSWORD"`
	MaxConns int    `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"10"`
}

// ConnString prefers DATABASE_URL and otherwise assembles a URL from the
// individual settings.
func (c *Config) ConnString() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}

	if c.DBName == "" || c.User == "" || c.Pass == "" {
		return "", ErrNotConfigured
	}

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.User, c.Pass),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}

	return u.String(), nil
}

func NewConnPool(ctx context.Context, config *Config) (*pgxpool.Pool, error) {
	connString, err := config.ConnString()
	if err != nil {
		return nil, err
	}

	pgxPoolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		// the parse error may echo the DSN, so it is not wrapped
		return nil, errors.New("failed to parse database config")
	}

	if config.MaxConns > 0 {
		pgxPoolConfig.MaxConns = int32(config.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}
