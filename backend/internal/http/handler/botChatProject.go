package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"vkrMiniApp/backend/internal/domain/models"
)

// BotChatProjectRequest is sent by the bot when /app is issued in a group.
// User is the sender of the command, when the bot knows it.
type BotChatProjectRequest struct {
	ChatID   int64                `json:"chat_id"`
	ChatType *string              `json:"chat_type"`
	Title    *string              `json:"title"`
	User     *models.TelegramUser `json:"user,omitempty"`
}

type BotChatProjectResponse struct {
	Ok      bool                `json:"ok"`
	Project *models.ProjectView `json:"project"`
}

// BotChatProjectHandler must sit behind the X-Bot-Token gate.
func BotChatProjectHandler(log *slog.Logger, users UserService, projects ProjectService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.BotChatProjectHandler"

		log := log.With(slog.String("op", op))

		if users == nil || projects == nil {
			writeError(log, w, fmt.Errorf("%w: database is not configured", ErrNotConfigured))
			return
		}

		var req BotChatProjectRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(log, w, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
			return
		}
		if req.ChatID == 0 {
			writeError(log, w, fmt.Errorf("%w: chat_id is required", ErrBadRequest))
			return
		}

		log = log.With(slog.Int64("chat_id", req.ChatID))

		chat := models.ChatContext{
			ChatID:   &req.ChatID,
			ChatType: req.ChatType,
			Title:    models.DefaultProjectTitle,
		}
		if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
			chat.Title = strings.TrimSpace(*req.Title)
		}

		var userID *int64
		if req.User != nil && req.User.ID != 0 && !req.User.IsBot {
			dbUser, err := users.Upsert(r.Context(), *req.User)
			if err != nil {
				writeError(log, w, err)
				return
			}
			userID = &dbUser.ID
		}

		project, err := projects.EnsureChatProject(r.Context(), chat, userID)
		if err != nil {
			writeError(log, w, err)
			return
		}

		log.Info("chat project provisioned for bot", slog.Int64("project_id", project.ID))

		writeJSON(log, w, http.StatusOK, BotChatProjectResponse{Ok: true, Project: project})
	}
}
