// Package sqlite is a gorm-backed Storage for local development where a
// PostgreSQL server is not at hand.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
)

type Config struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"data/vkr.db"`
}

type userRow struct {
	ID          int64  `gorm:"primaryKey"`
	TgID        int64  `gorm:"uniqueIndex;not null"`
	Username    *string
	FirstName   string `gorm:"not null"`
	LastName    *string
	PhotoURL    *string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

func (userRow) TableName() string { return "users" }

type projectRow struct {
	ID             int64   `gorm:"primaryKey"`
	ProjectKey     string  `gorm:"uniqueIndex;not null"`
	Title          string  `gorm:"not null"`
	TgChatID       *int64  `gorm:"uniqueIndex"`
	TgChatInstance *string `gorm:"uniqueIndex"`
	TgChatType     *string
	CreatedAt      time.Time
}

func (projectRow) TableName() string { return "projects" }

type memberRow struct {
	ProjectID int64  `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64  `gorm:"primaryKey;autoIncrement:false;index"`
	Role      string `gorm:"not null"`
	IsActive  bool   `gorm:"not null"`
}

func (memberRow) TableName() string { return "project_members" }

// gorm tags cannot express a partial index.
const oneOwnerIndex = `CREATE UNIQUE INDEX IF NOT EXISTS project_members_one_owner_idx
	ON project_members (project_id) WHERE role = 'OWNER'`

type Storage struct {
	db *gorm.DB
}

// New opens (creating when needed) the SQLite database at dsn and migrates it.
func New(dsn string) (*Storage, error) {
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite serialises writers anyway; one connection also keeps :memory: databases shared
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &projectRow{}, &memberRow{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	if err := db.Exec(oneOwnerIndex).Error; err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (s *Storage) UpsertUser(ctx context.Context, u models.UserUpsert) (*models.User, error) {
	loginAt := u.LoginAt
	if loginAt.IsZero() {
		loginAt = time.Now()
	}
	loginAt = loginAt.UTC()

	row := userRow{
		TgID:        u.TgID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   loginAt,
		LastLoginAt: loginAt,
	}

	var stored userRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tg_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "photo_url", "last_login_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		return tx.Where("tg_id = ?", u.TgID).First(&stored).Error
	})
	if err != nil {
		return nil, dbErr(err)
	}

	return stored.toModel(), nil
}

func (s *Storage) UserByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("tg_id = ?", tgID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, dbErr(err)
	}

	return row.toModel(), nil
}

func (s *Storage) InTx(ctx context.Context, fn func(tx repository.ProjectTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&projectTx{db: tx})
	})
}

func (s *Storage) ActiveMembership(ctx context.Context, projectID, userID int64) (*models.Membership, error) {
	var row memberRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ? AND is_active = ?", projectID, userID, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMembershipNotFound
		}
		return nil, dbErr(err)
	}

	return &models.Membership{
		ProjectID: row.ProjectID,
		UserID:    row.UserID,
		Role:      models.Role(row.Role),
		IsActive:  row.IsActive,
	}, nil
}

func (s *Storage) DeactivateMembership(ctx context.Context, projectID, userID int64) error {
	res := s.db.WithContext(ctx).Model(&memberRow{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Update("is_active", false)
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrMembershipNotFound
	}

	return nil
}

func (s *Storage) DeleteProject(ctx context.Context, projectID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&memberRow{}).Error; err != nil {
			return dbErr(err)
		}

		res := tx.Delete(&projectRow{}, projectID)
		if res.Error != nil {
			return dbErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrProjectNotFound
		}

		return nil
	})
}

type summaryRow struct {
	ID             int64
	ProjectKey     string
	Title          string
	TgChatID       *int64
	TgChatInstance *string
	TgChatType     *string
	CreatedAt      time.Time
	Role           string
}

func (s *Storage) ProjectsForUser(ctx context.Context, userID int64) ([]models.ProjectSummary, error) {
	var rows []summaryRow
	err := s.db.WithContext(ctx).
		Table("projects AS p").
		Select("p.id, p.project_key, p.title, p.tg_chat_id, p.tg_chat_instance, p.tg_chat_type, p.created_at, m.role").
		Joins("JOIN project_members m ON m.project_id = p.id").
		Where("m.user_id = ? AND m.is_active = ?", userID, true).
		Order("p.created_at DESC, p.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, dbErr(err)
	}

	projects := make([]models.ProjectSummary, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, models.ProjectSummary{
			Project: models.Project{
				ID:             r.ID,
				ProjectKey:     r.ProjectKey,
				Title:          r.Title,
				TgChatID:       r.TgChatID,
				TgChatInstance: r.TgChatInstance,
				TgChatType:     r.TgChatType,
				CreatedAt:      r.CreatedAt,
			},
			Role: models.Role(r.Role),
		})
	}

	return projects, nil
}

type projectTx struct {
	db *gorm.DB
}

func (t *projectTx) ProjectByChatID(_ context.Context, chatID int64) (*models.Project, error) {
	return t.one("tg_chat_id = ?", chatID)
}

func (t *projectTx) ProjectByChatInstance(_ context.Context, chatInstance string) (*models.Project, error) {
	return t.one("tg_chat_instance = ?", chatInstance)
}

func (t *projectTx) ProjectByKey(_ context.Context, projectKey string) (*models.Project, error) {
	return t.one("project_key = ?", projectKey)
}

func (t *projectTx) CreateProject(_ context.Context, p models.NewProject) (*models.Project, error) {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := projectRow{
		ProjectKey:     p.ProjectKey,
		Title:          p.Title,
		TgChatID:       p.ChatID,
		TgChatInstance: p.ChatInstance,
		TgChatType:     p.ChatType,
		CreatedAt:      createdAt.UTC(),
	}
	if err := t.db.Create(&row).Error; err != nil {
		return nil, dbErr(err)
	}

	return row.toModel(), nil
}

func (t *projectTx) UpdateProjectChat(_ context.Context, projectID int64, upd models.ProjectChatUpdate) (*models.Project, error) {
	res := t.db.Model(&projectRow{}).Where("id = ?", projectID).Updates(map[string]any{
		"tg_chat_id":       gorm.Expr("COALESCE(tg_chat_id, ?)", upd.ChatID),
		"tg_chat_instance": gorm.Expr("COALESCE(tg_chat_instance, ?)", upd.ChatInstance),
		"title":            upd.Title,
		"tg_chat_type":     upd.ChatType,
	})
	if res.Error != nil {
		return nil, dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrProjectNotFound
	}

	return t.one("id = ?", projectID)
}

func (t *projectTx) UpsertMembership(_ context.Context, projectID, userID int64, role models.Role) (models.Role, error) {
	row := memberRow{
		ProjectID: projectID,
		UserID:    userID,
		Role:      string(role),
		IsActive:  true,
	}

	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"is_active": true,
			"role":      gorm.Expr("CASE WHEN excluded.role = 'OWNER' THEN 'OWNER' ELSE project_members.role END"),
		}),
	}).Create(&row).Error
	if err != nil {
		return "", dbErr(err)
	}

	var stored memberRow
	if err := t.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&stored).Error; err != nil {
		return "", dbErr(err)
	}

	return models.Role(stored.Role), nil
}

func (t *projectTx) HasOwner(_ context.Context, projectID int64) (bool, error) {
	var n int64
	err := t.db.Model(&memberRow{}).
		Where("project_id = ? AND role = ?", projectID, string(models.RoleOwner)).
		Count(&n).Error
	if err != nil {
		return false, dbErr(err)
	}

	return n > 0, nil
}

func (t *projectTx) one(query string, args ...any) (*models.Project, error) {
	var row projectRow
	if err := t.db.Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, dbErr(err)
	}

	return row.toModel(), nil
}

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:          r.ID,
		TgID:        r.TgID,
		Username:    r.Username,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhotoURL:    r.PhotoURL,
		CreatedAt:   r.CreatedAt,
		LastLoginAt: r.LastLoginAt,
	}
}

func (r projectRow) toModel() *models.Project {
	return &models.Project{
		ID:             r.ID,
		ProjectKey:     r.ProjectKey,
		Title:          r.Title,
		TgChatID:       r.TgChatID,
		TgChatInstance: r.TgChatInstance,
		TgChatType:     r.TgChatType,
		CreatedAt:      r.CreatedAt,
	}
}

func dbErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	}

	return fmt.Errorf("database error: %w", err)
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
