package config

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	httpapp "vkrMiniApp/backend/internal/app/http"
	"vkrMiniApp/backend/internal/repository/postgres"
	"vkrMiniApp/backend/internal/repository/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env      string          `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTP     httpapp.Config  `yaml:"http_server"`
	Telegram TelegramConfig  `yaml:"telegram"`
	Auth     AuthConfig      `yaml:"auth"`
	Storage  StorageConfig   `yaml:"storage"`
	Postgres postgres.Config `yaml:"postgres"`
	SQLite   sqlite.Config   `yaml:"sqlite"`
}

// TelegramConfig secrets may be empty; the endpoints needing them then
// answer 503 instead of the process refusing to start.
type TelegramConfig struct {
	BotToken         string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	BotInternalToken string `yaml:"bot_internal_token" env:"BOT_INTERNAL_TOKEN"`
}

type AuthConfig struct {
	MaxAge    time.Duration `yaml:"max_age" env:"AUTH_MAX_AGE" env-default:"24h"`
	JWTSecret string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	JWTTTL    time.Duration `yaml:"jwt_ttl" env:"AUTH_JWT_TTL" env-default:"720h"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

func MustLoad() *Config {
	cfg, err := LoadPath(fetchConfigPath())
	if err != nil {
		panic("cannot read config: " + err.Error())
	}

	return cfg
}

// LoadPath reads configuration from the YAML file at configPath, when given,
// with environment variables taking precedence. A .env file in the working
// directory is loaded first if present.
func LoadPath(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, err
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver != DriverPostgres && cfg.Storage.Driver != DriverSQLite {
		return nil, errors.New("STORAGE_DRIVER must be postgres or sqlite")
	}

	return &cfg, nil
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
