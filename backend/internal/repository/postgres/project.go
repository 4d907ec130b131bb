package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
)

const projectColumns = `id, project_key, title, tg_chat_id, tg_chat_instance, tg_chat_type, created_at`

type projectTx struct {
	q querier
}

func (t *projectTx) ProjectByChatID(ctx context.Context, chatID int64) (*models.Project, error) {
	return t.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE tg_chat_id = $1`, chatID)
}

func (t *projectTx) ProjectByChatInstance(ctx context.Context, chatInstance string) (*models.Project, error) {
	return t.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE tg_chat_instance = $1`, chatInstance)
}

func (t *projectTx) ProjectByKey(ctx context.Context, projectKey string) (*models.Project, error) {
	return t.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_key = $1`, projectKey)
}

func (t *projectTx) CreateProject(ctx context.Context, p models.NewProject) (*models.Project, error) {
	query := `
		INSERT INTO projects (project_key, title, tg_chat_id, tg_chat_instance, tg_chat_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + projectColumns

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	project, err := scanProject(t.q.QueryRow(ctx, query, p.ProjectKey, p.Title, p.ChatID, p.ChatInstance, p.ChatType, createdAt))
	if err != nil {
		return nil, dbErr(err)
	}

	return project, nil
}

func (t *projectTx) UpdateProjectChat(ctx context.Context, projectID int64, upd models.ProjectChatUpdate) (*models.Project, error) {
	query := `
		UPDATE projects SET
			tg_chat_id       = COALESCE(tg_chat_id, $2),
			tg_chat_instance = COALESCE(tg_chat_instance, $3),
			title            = $4,
			tg_chat_type     = $5
		WHERE id = $1
		RETURNING ` + projectColumns

	return t.one(ctx, query, projectID, upd.ChatID, upd.ChatInstance, upd.Title, upd.ChatType)
}

func (t *projectTx) UpsertMembership(ctx context.Context, projectID, userID int64, role models.Role) (models.Role, error) {
	query := `
		INSERT INTO project_members (project_id, user_id, role, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (project_id, user_id) DO UPDATE SET
			is_active = TRUE,
			role      = CASE WHEN EXCLUDED.role = 'OWNER' THEN 'OWNER' ELSE project_members.role END
		RETURNING role`

	var stored string
	if err := t.q.QueryRow(ctx, query, projectID, userID, string(role)).Scan(&stored); err != nil {
		return "", dbErr(err)
	}

	return models.Role(stored), nil
}

func (t *projectTx) HasOwner(ctx context.Context, projectID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM project_members WHERE project_id = $1 AND role = 'OWNER')`

	var owned bool
	if err := t.q.QueryRow(ctx, query, projectID).Scan(&owned); err != nil {
		return false, dbErr(err)
	}

	return owned, nil
}

func (t *projectTx) one(ctx context.Context, query string, args ...any) (*models.Project, error) {
	project, err := scanProject(t.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, dbErr(err)
	}

	return project, nil
}

func (s *Storage) ActiveMembership(ctx context.Context, projectID, userID int64) (*models.Membership, error) {
	query := `
		SELECT project_id, user_id, role, is_active
		FROM project_members
		WHERE project_id = $1 AND user_id = $2 AND is_active`

	var (
		m    models.Membership
		role string
	)
	err := s.db.QueryRow(ctx, query, projectID, userID).Scan(&m.ProjectID, &m.UserID, &role, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrMembershipNotFound
		}
		return nil, dbErr(err)
	}
	m.Role = models.Role(role)

	return &m, nil
}

func (s *Storage) DeactivateMembership(ctx context.Context, projectID, userID int64) error {
	query := `UPDATE project_members SET is_active = FALSE WHERE project_id = $1 AND user_id = $2`

	tag, err := s.db.Exec(ctx, query, projectID, userID)
	if err != nil {
		return dbErr(err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrMembershipNotFound
	}

	return nil
}

func (s *Storage) DeleteProject(ctx context.Context, projectID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return dbErr(err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrProjectNotFound
	}

	return nil
}

func (s *Storage) ProjectsForUser(ctx context.Context, userID int64) ([]models.ProjectSummary, error) {
	query := `
		SELECT p.id, p.project_key, p.title, p.tg_chat_id, p.tg_chat_instance, p.tg_chat_type, p.created_at, m.role
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1 AND m.is_active
		ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	projects := []models.ProjectSummary{}
	for rows.Next() {
		var (
			p    models.ProjectSummary
			role string
		)
		err := rows.Scan(&p.ID, &p.ProjectKey, &p.Title, &p.TgChatID, &p.TgChatInstance, &p.TgChatType, &p.CreatedAt, &role)
		if err != nil {
			return nil, dbErr(err)
		}
		p.Role = models.Role(role)
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	return projects, nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.ProjectKey, &p.Title, &p.TgChatID, &p.TgChatInstance, &p.TgChatType, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
