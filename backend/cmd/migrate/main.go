// Command migrate applies the PostgreSQL schema to the configured database.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vkrMiniApp/backend/internal/config"
	"vkrMiniApp/backend/internal/repository/postgres/schema"
	"vkrMiniApp/pkg/logger/handlers/slogpretty"
	"vkrMiniApp/pkg/logger/sl"
)

func main() {
	var schemaPath string
	flag.StringVar(&schemaPath, "schema", "", "path to schema.sql (defaults to the bundled schema)")

	cfg := config.MustLoad()

	log := slog.New(slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo},
	}.NewPrettyHandler(os.Stdout))
	if cfg.Env != "local" {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	if err := run(log, cfg, schemaPath); err != nil {
		log.Error("schema deploy failed", sl.Err(err))
		os.Exit(1)
	}

	log.Info("schema deployed")
}

func run(log *slog.Logger, cfg *config.Config, schemaPath string) error {
	schemaSQL := schema.SQL()
	if schemaPath != "" {
		var err error
		if schemaSQL, err = schema.Load(schemaPath); err != nil {
			return err
		}
		log.Info("using schema file", slog.String("path", schemaPath))
	}

	dsn, err := cfg.Postgres.ConnString()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	return schema.Apply(ctx, db, schemaSQL)
}
