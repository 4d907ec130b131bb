package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"vkrMiniApp/backend/internal/domain/models"
)

type MeResponse struct {
	Ok   bool         `json:"ok"`
	User *models.User `json:"user"`
}

func MeHandler(log *slog.Logger, users UserService, sessions *Sessions) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.MeHandler"

		log := log.With(slog.String("op", op))

		if users == nil {
			writeError(log, w, fmt.Errorf("%w: database is not configured", ErrNotConfigured))
			return
		}

		tgID, err := callerTgID(r, sessions)
		if err != nil {
			writeError(log, w, err)
			return
		}

		user, err := users.Find(r.Context(), tgID)
		if err != nil {
			writeError(log, w, err)
			return
		}

		writeJSON(log, w, http.StatusOK, MeResponse{Ok: true, User: user})
	}
}
