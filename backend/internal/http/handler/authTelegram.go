package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/pkg/initdata"
	"vkrMiniApp/pkg/logger/sl"
)

const maxBodyBytes = 64 << 10

// AuthTelegramRequest carries the raw init_data string. The unsafe_* fields
// are asserted by the client and only backfill chat metadata that the signed
// payload lacks.
type AuthTelegramRequest struct {
	InitData         string          `json:"init_data"`
	UnsafeChatID     json.RawMessage `json:"unsafe_chat_id,omitempty"`
	UnsafeChatIDType string          `json:"unsafe_chat_id_type,omitempty"`
	UnsafeChatTitle  string          `json:"unsafe_chat_title,omitempty"`
}

type AuthTelegramResponse struct {
	Ok               bool                `json:"ok"`
	User             json.RawMessage     `json:"user"`
	DBUser           *models.User        `json:"db_user"`
	ActiveProject    *models.ProjectView `json:"active_project"`
	LaunchedFromChat bool                `json:"launched_from_chat"`
	SessionToken     string              `json:"session_token,omitempty"`
}

func AuthTelegramHandler(
	log *slog.Logger,
	verifier InitDataVerifier,
	users UserService,
	projects ProjectService,
	sessions *Sessions,
) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.AuthTelegramHandler"

		log := log.With(slog.String("op", op))

		if verifier == nil {
			writeError(log, w, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is not set", ErrNotConfigured))
			return
		}

		var req AuthTelegramRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(log, w, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
			return
		}

		payload, err := verifier.Verify(req.InitData)
		if err != nil {
			writeError(log, w, err)
			return
		}

		log = log.With(slog.Int64("tg_id", payload.User.ID))

		if users == nil || projects == nil {
			writeError(log, w, fmt.Errorf("%w: database is not configured", ErrNotConfigured))
			return
		}

		dbUser, err := users.Upsert(r.Context(), payload.User)
		if err != nil {
			writeError(log, w, err)
			return
		}

		chat := chatContext(payload.Context, req)
		launchedFromChat := chat.IsChatScoped()

		var active *models.ProjectView
		switch {
		case launchedFromChat:
			active, err = projects.EnsureChatProject(r.Context(), chat, &dbUser.ID)
		case chat.ProjectKey != nil:
			active, err = projects.JoinByKey(r.Context(), *chat.ProjectKey, dbUser.ID)
		}
		if err != nil {
			writeError(log, w, err)
			return
		}

		token, err := sessions.Issue(payload.User.ID)
		if err != nil {
			// the launch itself succeeded, the client falls back to tg_id
			log.Error("failed to issue session token", sl.Err(err))
		}

		log.Info("telegram user authenticated", slog.Bool("launched_from_chat", launchedFromChat))

		writeJSON(log, w, http.StatusOK, AuthTelegramResponse{
			Ok:               true,
			User:             signedUser(payload),
			DBUser:           dbUser,
			ActiveProject:    active,
			LaunchedFromChat: launchedFromChat,
			SessionToken:     token,
		})
	}
}

// signedUser echoes the user object exactly as Telegram signed it.
func signedUser(payload *initdata.Payload) json.RawMessage {
	if len(payload.RawUser) > 0 {
		return payload.RawUser
	}

	raw, _ := json.Marshal(payload.User)
	return raw
}

// chatContext merges the signed launch context with the client's unsafe
// fallbacks. Signed values always win.
func chatContext(signed initdata.Context, req AuthTelegramRequest) models.ChatContext {
	var chat models.ChatContext

	if signed.Chat != nil {
		id := signed.Chat.ID
		chat.ChatID = &id
	} else {
		chat.ChatID = parseUnsafeChatID(req.UnsafeChatID)
	}

	if signed.ChatInstance != nil && *signed.ChatInstance != "" {
		chat.ChatInstance = signed.ChatInstance
	}

	switch {
	case signed.Chat != nil && signed.Chat.Title != "":
		chat.Title = signed.Chat.Title
	case strings.TrimSpace(req.UnsafeChatTitle) != "":
		chat.Title = strings.TrimSpace(req.UnsafeChatTitle)
	default:
		chat.Title = models.DefaultProjectTitle
	}

	switch {
	case signed.ChatType != nil && *signed.ChatType != "":
		chat.ChatType = signed.ChatType
	case signed.Chat != nil && signed.Chat.Type != "":
		t := signed.Chat.Type
		chat.ChatType = &t
	case strings.TrimSpace(req.UnsafeChatIDType) != "":
		t := strings.TrimSpace(req.UnsafeChatIDType)
		chat.ChatType = &t
	}

	if signed.StartParam != nil && *signed.StartParam != "" {
		chat.ProjectKey = signed.StartParam
	}

	return chat
}

// parseUnsafeChatID accepts a JSON number or a numeric string.
func parseUnsafeChatID(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}

	return &id
}
