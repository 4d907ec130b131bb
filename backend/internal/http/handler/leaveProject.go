package handler

import (
	"fmt"
	"log/slog"
	"net/http"
)

type LeaveProjectResponse struct {
	Ok            bool  `json:"ok"`
	LeftProjectID int64 `json:"left_project_id"`
}

func LeaveProjectHandler(log *slog.Logger, projects ProjectService, sessions *Sessions) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.LeaveProjectHandler"

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

		left, err := projects.Leave(r.Context(), projectID, tgID)
		if err != nil {
			writeError(log, w, err)
			return
		}

		writeJSON(log, w, http.StatusOK, LeaveProjectResponse{Ok: true, LeftProjectID: left})
	}
}
