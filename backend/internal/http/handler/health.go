package handler

import (
	"log/slog"
	"net/http"
)

func HealthHandler(log *slog.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(log, w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func RootHandler(log *slog.Logger, env string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(log, w, http.StatusOK, map[string]string{
			"service": "vkr-backend",
			"env":     env,
		})
	}
}
