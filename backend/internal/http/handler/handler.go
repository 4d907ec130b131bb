package handler

import (
	"context"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/pkg/initdata"
)

type InitDataVerifier interface {
	Verify(raw string) (*initdata.Payload, error)
}

type UserService interface {
	Upsert(ctx context.Context, tgUser models.TelegramUser) (*models.User, error)
	Find(ctx context.Context, tgID int64) (*models.User, error)
}

type ProjectService interface {
	EnsureChatProject(ctx context.Context, chat models.ChatContext, userID *int64) (*models.ProjectView, error)
	JoinByKey(ctx context.Context, projectKey string, userID int64) (*models.ProjectView, error)
	Delete(ctx context.Context, projectID int64, requestingTgID int64) (int64, error)
	Leave(ctx context.Context, projectID int64, requestingTgID int64) (int64, error)
	ListForUser(ctx context.Context, tgID int64) ([]models.ProjectSummary, error)
}
