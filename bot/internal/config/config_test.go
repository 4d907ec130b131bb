package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("WEB_APP_URL", "https://app.example.com")
	t.Setenv("BOT_USERNAME", "@vkr_bot")
	t.Setenv("MINI_APP_SHORT_NAME", "app")
	t.Setenv("BACKEND_INTERNAL_URL", "http://backend:8000")
	t.Setenv("BOT_INTERNAL_TOKEN", "internal")
}

func TestLoadPath(t *testing.T) {
	chdir(t, t.TempDir())
	setRequired(t)

	cfg, err := LoadPath("")
	require.NoError(t, err)

	assert.Equal(t, "@vkr_bot", cfg.Telegram.BotUsername)
	assert.Equal(t, "http://backend:8000", cfg.Backend.URL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
}

func TestLoadPath_MissingRequired(t *testing.T) {
	chdir(t, t.TempDir())
	setRequired(t)
	t.Setenv("BOT_INTERNAL_TOKEN", "")
	os.Unsetenv("BOT_INTERNAL_TOKEN")

	_, err := LoadPath("")
	assert.Error(t, err)
}
