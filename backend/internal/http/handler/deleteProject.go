package handler

import (
	"fmt"
	"log/slog"
	"net/http"
)

type DeleteProjectResponse struct {
	Ok               bool  `json:"ok"`
	DeletedProjectID int64 `json:"deleted_project_id"`
}

func DeleteProjectHandler(log *slog.Logger, projects ProjectService, sessions *Sessions) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.DeleteProjectHandler"

		log := log.With(slog.String("op", op))

		if projects == nil {
			writeError(log, w, fmt.Errorf("%w: database is not configured", ErrNotConfigured))
			return
		}

		projectID, err := pathInt64(r, "project_id")
		if err != nil {
			writeError(log, w, err)
			return
		}

		tgID, err := callerTgID(r, sessions)
		if err != nil {
			writeError(log, w, err)
			return
		}

		deleted, err := projects.Delete(r.Context(), projectID, tgID)
		if err != nil {
			writeError(log, w, err)
			return
		}

		writeJSON(log, w, http.StatusOK, DeleteProjectResponse{Ok: true, DeletedProjectID: deleted})
	}
}
