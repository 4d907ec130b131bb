package repository

import (
	"context"
	"errors"

	"vkrMiniApp/backend/internal/domain/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrConflict is returned when a write hits a unique constraint. Callers
	// may retry the whole transaction once.
	ErrConflict = errors.New("unique constraint conflict")
)

type UserStorage interface {
	UpsertUser(ctx context.Context, u models.UserUpsert) (*models.User, error)
	UserByTgID(ctx context.Context, tgID int64) (*models.User, error)
}

// ProjectTx is the set of project operations that run inside one storage
// transaction.
type ProjectTx interface {
	ProjectByChatID(ctx context.Context, chatID int64) (*models.Project, error)
	ProjectByChatInstance(ctx context.Context, chatInstance string) (*models.Project, error)
	ProjectByKey(ctx context.Context, projectKey string) (*models.Project, error)
	CreateProject(ctx context.Context, p models.NewProject) (*models.Project, error)
	UpdateProjectChat(ctx context.Context, projectID int64, upd models.ProjectChatUpdate) (*models.Project, error)
	// UpsertMembership inserts (projectID, userID) with role or, when the row
	// exists, reactivates it keeping its stored role. An OWNER request promotes
	// an existing row; a role is never downgraded. A second OWNER of the same
	// project is ErrConflict. The effective role is returned.
	UpsertMembership(ctx context.Context, projectID, userID int64, role models.Role) (models.Role, error)
	HasOwner(ctx context.Context, projectID int64) (bool, error)
}

type ProjectStorage interface {
	InTx(ctx context.Context, fn func(tx ProjectTx) error) error
	ActiveMembership(ctx context.Context, projectID, userID int64) (*models.Membership, error)
	DeactivateMembership(ctx context.Context, projectID, userID int64) error
	DeleteProject(ctx context.Context, projectID int64) error
	ProjectsForUser(ctx context.Context, userID int64) ([]models.ProjectSummary, error)
}

// Storage is implemented by every backend (postgres, sqlite, memory).
type Storage interface {
	UserStorage
	ProjectStorage
	Close() error
}
