package projectservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
	"vkrMiniApp/pkg/logger/sl"
)

var (
	ErrForbidden          = errors.New("only the project owner can do this")
	ErrOwnerCannotLeave   = fmt.Errorf("%w: the owner deletes the project instead of leaving", ErrForbidden)
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrProjectNotFound    = repository.ErrProjectNotFound
	ErrMembershipNotFound = repository.ErrMembershipNotFound
)

type Project struct {
	log      *slog.Logger
	users    repository.UserStorage
	projects repository.ProjectStorage
	newKey   func() string
}

func New(
	log *slog.Logger,
	users repository.UserStorage,
	projects repository.ProjectStorage,
) *Project {
	return &Project{
		log:      log,
		users:    users,
		projects: projects,
		newKey:   uuid.NewString,
	}
}

// EnsureChatProject finds or creates the project bound to the chat and, when
// userID is set, makes that user an active member of it. A user creating the
// project, or the first user to reach a project without an owner, becomes its
// OWNER. It returns nil when the launch is not chat scoped.
//
// A deep link key on the launch never rebinds a project to this chat: the
// user additionally joins the keyed project as a member.
//
// A unique-constraint conflict means a concurrent launch from the same chat
// won the insert; the whole transaction is retried once and then sees it.
func (p *Project) EnsureChatProject(ctx context.Context, chat models.ChatContext, userID *int64) (*models.ProjectView, error) {
	const op = "Project.EnsureChatProject"

	log := p.log.With(slog.String("op", op))

	if chat.ChatInstance != nil && *chat.ChatInstance == "" {
		chat.ChatInstance = nil
	}
	if !chat.IsChatScoped() {
		return nil, nil
	}
	if chat.Title == "" {
		chat.Title = models.DefaultProjectTitle
	}

	view, err := p.ensureChatProject(ctx, chat, userID)
	if errors.Is(err, repository.ErrConflict) {
		log.Warn("chat project conflict, retrying", sl.Err(err))

		view, err = p.ensureChatProject(ctx, chat, userID)
	}
	if err != nil {
		log.Error("failed to ensure chat project", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("chat project ensured",
		slog.Int64("project_id", view.ID),
		slog.String("role", string(view.Role)),
	)

	return view, nil
}

func (p *Project) ensureChatProject(ctx context.Context, chat models.ChatContext, userID *int64) (*models.ProjectView, error) {
	var view *models.ProjectView

	err := p.projects.InTx(ctx, func(tx repository.ProjectTx) error {
		project, err := findChatProject(ctx, tx, chat)
		if err != nil {
			return err
		}

		role := models.RoleMember
		if project == nil {
			role = models.RoleOwner
			project, err = tx.CreateProject(ctx, models.NewProject{
				ProjectKey:   p.newKey(),
				Title:        chat.Title,
				ChatID:       chat.ChatID,
				ChatInstance: chat.ChatInstance,
				ChatType:     chat.ChatType,
			})
		} else {
			project, err = tx.UpdateProjectChat(ctx, project.ID, models.ProjectChatUpdate{
				ChatID:       chat.ChatID,
				ChatInstance: chat.ChatInstance,
				ChatType:     chat.ChatType,
				Title:        chat.Title,
			})
		}
		if err != nil {
			return err
		}

		view = &models.ProjectView{Project: *project}
		if userID == nil {
			return nil
		}

		view.Role, err = join(ctx, tx, project.ID, *userID, role)
		if err != nil {
			return err
		}

		if chat.ProjectKey == nil || *chat.ProjectKey == "" || *chat.ProjectKey == project.ProjectKey {
			return nil
		}

		keyed, err := tx.ProjectByKey(ctx, *chat.ProjectKey)
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = join(ctx, tx, keyed.ID, *userID, models.RoleMember)
		return err
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

// join upserts the membership. A project nobody owns yet, for example one the
// bot created for an anonymous admin, is claimed by the first user to join.
func join(ctx context.Context, tx repository.ProjectTx, projectID, userID int64, role models.Role) (models.Role, error) {
	if role != models.RoleOwner {
		owned, err := tx.HasOwner(ctx, projectID)
		if err != nil {
			return "", err
		}
		if !owned {
			role = models.RoleOwner
		}
	}

	return tx.UpsertMembership(ctx, projectID, userID, role)
}

// findChatProject looks the chat up by id, then by chat_instance.
func findChatProject(ctx context.Context, tx repository.ProjectTx, chat models.ChatContext) (*models.Project, error) {
	if chat.ChatID != nil {
		project, err := tx.ProjectByChatID(ctx, *chat.ChatID)
		if err == nil {
			return project, nil
		}
		if !errors.Is(err, repository.ErrProjectNotFound) {
			return nil, err
		}
	}

	if chat.ChatInstance != nil {
		project, err := tx.ProjectByChatInstance(ctx, *chat.ChatInstance)
		if err == nil {
			return project, nil
		}
		if !errors.Is(err, repository.ErrProjectNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

// JoinByKey adds the user to the project named by projectKey as a MEMBER
// (OWNER when the project has none), reactivating a previous membership with
// its stored role. Unknown keys yield nil.
func (p *Project) JoinByKey(ctx context.Context, projectKey string, userID int64) (*models.ProjectView, error) {
	const op = "Project.JoinByKey"

	if projectKey == "" {
		return nil, nil
	}

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("user_id", userID),
	)

	view, err := p.joinByKey(ctx, projectKey, userID)
	if errors.Is(err, repository.ErrConflict) {
		log.Warn("join conflict, retrying", sl.Err(err))

		view, err = p.joinByKey(ctx, projectKey, userID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			log.Debug("start_param does not name a project")

			return nil, nil
		}

		log.Error("failed to join project", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("joined project by key", slog.Int64("project_id", view.ID))

	return view, nil
}

func (p *Project) joinByKey(ctx context.Context, projectKey string, userID int64) (*models.ProjectView, error) {
	var view *models.ProjectView

	err := p.projects.InTx(ctx, func(tx repository.ProjectTx) error {
		project, err := tx.ProjectByKey(ctx, projectKey)
		if err != nil {
			return err
		}

		role, err := join(ctx, tx, project.ID, userID, models.RoleMember)
		if err != nil {
			return err
		}

		view = &models.ProjectView{Project: *project, Role: role}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

// Delete removes the project when the requesting user is its active OWNER.
// Memberships go with it.
func (p *Project) Delete(ctx context.Context, projectID int64, requestingTgID int64) (int64, error) {
	const op = "Project.Delete"

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("project_id", projectID),
		slog.Int64("tg_id", requestingTgID),
	)

	membership, err := p.membership(ctx, projectID, requestingTgID)
	if err != nil {
		log.Info("delete refused", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if membership.Role != models.RoleOwner {
		log.Info("delete refused: not the owner")

		return 0, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := p.projects.DeleteProject(ctx, projectID); err != nil {
		log.Error("failed to delete project", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("project deleted")

	return projectID, nil
}

// Leave deactivates the requesting user's membership. The row is kept so a
// later launch from the chat restores it with the same role.
func (p *Project) Leave(ctx context.Context, projectID int64, requestingTgID int64) (int64, error) {
	const op = "Project.Leave"

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("project_id", projectID),
		slog.Int64("tg_id", requestingTgID),
	)

	membership, err := p.membership(ctx, projectID, requestingTgID)
	if err != nil {
		log.Info("leave refused", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if membership.Role == models.RoleOwner {
		return 0, fmt.Errorf("%s: %w", op, ErrOwnerCannotLeave)
	}

	if err := p.projects.DeactivateMembership(ctx, projectID, membership.UserID); err != nil {
		log.Error("failed to leave project", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("project left")

	return projectID, nil
}

func (p *Project) membership(ctx context.Context, projectID int64, tgID int64) (*models.Membership, error) {
	user, err := p.users.UserByTgID(ctx, tgID)
	if err != nil {
		return nil, err
	}

	return p.projects.ActiveMembership(ctx, projectID, user.ID)
}

// ListForUser returns the projects the user actively belongs to, newest
// first. Unknown users have no projects.
func (p *Project) ListForUser(ctx context.Context, tgID int64) ([]models.ProjectSummary, error) {
	const op = "Project.ListForUser"

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("tg_id", tgID),
	)

	user, err := p.users.UserByTgID(ctx, tgID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return []models.ProjectSummary{}, nil
		}

		log.Error("failed to get user", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	projects, err := p.projects.ProjectsForUser(ctx, user.ID)
	if err != nil {
		log.Error("failed to list projects", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if projects == nil {
		projects = []models.ProjectSummary{}
	}

	return projects, nil
}
