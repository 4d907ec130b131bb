package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vkrMiniApp/backend/internal/pkg/initdata"
	jwtToken "vkrMiniApp/backend/internal/pkg/jwt"
	"vkrMiniApp/backend/internal/repository"
	projectservice "vkrMiniApp/backend/internal/service/project"
	"vkrMiniApp/pkg/logger/sl"
)

var (
	// ErrNotConfigured is returned when a secret or the database the endpoint
	// needs was not configured at startup.
	ErrNotConfigured = errors.New("service is not configured")
	ErrBadRequest    = errors.New("bad request")
)

type errorResponse struct {
	Ok     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", sl.Err(err))
	}
}

// writeError maps err onto a status code and an {ok:false, detail} body.
// Storage failures are reported without their cause.
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	status, detail := classify(err)

	if status == http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), sl.Err(err))
	}

	writeJSON(log, w, status, errorResponse{Ok: false, Detail: detail})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, initdata.ErrMalformed),
		errors.Is(err, initdata.ErrMissingHash),
		errors.Is(err, initdata.ErrMissingUser):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, initdata.ErrAuthInvalid):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, jwtToken.ErrInvalidToken):
		return http.StatusUnauthorized, jwtToken.ErrInvalidToken.Error()

	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, repository.ErrUserNotFound.Error()
	case errors.Is(err, repository.ErrMembershipNotFound):
		return http.StatusNotFound, "project not found or you are not a member"
	case errors.Is(err, repository.ErrProjectNotFound):
		return http.StatusNotFound, repository.ErrProjectNotFound.Error()
	case errors.Is(err, projectservice.ErrOwnerCannotLeave):
		return http.StatusForbidden, "the owner cannot leave the project, delete it instead"
	case errors.Is(err, projectservice.ErrForbidden):
		return http.StatusForbidden, projectservice.ErrForbidden.Error()
	}

	return http.StatusInternalServerError, "storage error"
}
