package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

const BotTokenHeader = "X-Bot-Token"

// BotToken admits requests that carry the shared internal token. Without a
// configured token every request is refused with 503.
func BotToken(log *slog.Logger, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.BotToken"

			log := log.With(slog.String("op", op), slog.String("path", r.URL.Path))

			if token == "" {
				log.Warn("BOT_INTERNAL_TOKEN is not configured")
				deny(w, http.StatusServiceUnavailable, "BOT_INTERNAL_TOKEN is not configured")
				return
			}

			got := r.Header.Get(BotTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				log.Info("bot token mismatch")
				deny(w, http.StatusUnauthorized, "invalid bot token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "detail": detail})
}
