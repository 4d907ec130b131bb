package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"vkrMiniApp/backend/internal/domain/models"
)

type GetProjectsResponse struct {
	Ok       bool                    `json:"ok"`
	Projects []models.ProjectSummary `json:"projects"`
}

func GetProjectsHandler(log *slog.Logger, projects ProjectService, sessions *Sessions) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.GetProjectsHandler"

		log := log.With(slog.String("op", op))

		if projects == nil {
			writeError(log, w, fmt.Errorf("%w: database is not configured", ErrNotConfigured))
			return
		}

		tgID, err := callerTgID(r, sessions)
		if err != nil {
			writeError(log, w, err)
			return
		}

		list, err := projects.ListForUser(r.Context(), tgID)
		if err != nil {
			writeError(log, w, err)
			return
		}

		writeJSON(log, w, http.StatusOK, GetProjectsResponse{Ok: true, Projects: list})
	}
}
