package config

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"APP_ENV" env-default:"development"`
	Telegram TelegramConfig `yaml:"telegram"`
	Backend  BackendConfig  `yaml:"backend"`
}

type TelegramConfig struct {
	BotToken         string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
	WebAppURL        string `yaml:"web_app_url" env:"WEB_APP_URL" env-required:"true"`
	BotUsername      string `yaml:"bot_username" env:"BOT_USERNAME" env-required:"true"`
	MiniAppShortName string `yaml:"mini_app_short_name" env:"MINI_APP_SHORT_NAME" env-required:"true"`
}

type BackendConfig struct {
	URL           string        `yaml:"url" env:"BACKEND_INTERNAL_URL" env-required:"true"`
	InternalToken string        `yaml:"internal_token" env:"BOT_INTERNAL_TOKEN" env-required:"true"`
	Timeout       time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"15s"`
}

func MustLoad() *Config {
	cfg, err := LoadPath(fetchConfigPath())
	if err != nil {
		panic("cannot read config: " + err.Error())
	}

	return cfg
}

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

		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
