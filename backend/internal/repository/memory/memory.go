// Package memory is an in-process Storage for tests. It enforces the same
// unique constraints as the SQL schema and rolls a transaction back when its
// callback fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
)

type membershipKey struct {
	projectID int64
	userID    int64
}

type state struct {
	users       map[int64]models.User // by tg_id
	projects    map[int64]models.Project
	memberships map[membershipKey]models.Membership
	nextUserID  int64
	nextProjID  int64
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]models.User, len(s.users)),
		projects:    make(map[int64]models.Project, len(s.projects)),
		memberships: make(map[membershipKey]models.Membership, len(s.memberships)),
		nextUserID:  s.nextUserID,
		nextProjID:  s.nextProjID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}

	return c
}

type Storage struct {
	mu sync.Mutex
	st *state
}

func New() *Storage {
	return &Storage{
		st: &state{
			users:       map[int64]models.User{},
			projects:    map[int64]models.Project{},
			memberships: map[membershipKey]models.Membership{},
		},
	}
}

func (s *Storage) Close() error { return nil }

func (s *Storage) UpsertUser(_ context.Context, u models.UserUpsert) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loginAt := u.LoginAt
	if loginAt.IsZero() {
		loginAt = time.Now()
	}

	rec, ok := s.st.users[u.TgID]
	if !ok {
		s.st.nextUserID++
		rec = models.User{
			ID:        s.st.nextUserID,
			TgID:      u.TgID,
			CreatedAt: loginAt,
		}
	}

	rec.Username = u.Username
	rec.FirstName = u.FirstName
	rec.LastName = u.LastName
	rec.PhotoURL = u.PhotoURL
	rec.LastLoginAt = loginAt
	s.st.users[u.TgID] = rec

	out := rec
	return &out, nil
}

func (s *Storage) UserByTgID(_ context.Context, tgID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.st.users[tgID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &rec, nil
}

func (s *Storage) InTx(_ context.Context, fn func(tx repository.ProjectTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}

	return nil
}

func (s *Storage) ActiveMembership(_ context.Context, projectID, userID int64) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.st.memberships[membershipKey{projectID, userID}]
	if !ok || !m.IsActive {
		return nil, repository.ErrMembershipNotFound
	}

	return &m, nil
}

func (s *Storage) DeactivateMembership(_ context.Context, projectID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{projectID, userID}
	m, ok := s.st.memberships[key]
	if !ok {
		return repository.ErrMembershipNotFound
	}
	m.IsActive = false
	s.st.memberships[key] = m

	return nil
}

func (s *Storage) DeleteProject(_ context.Context, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.projects[projectID]; !ok {
		return repository.ErrProjectNotFound
	}

	delete(s.st.projects, projectID)
	for k := range s.st.memberships {
		if k.projectID == projectID {
			delete(s.st.memberships, k)
		}
	}

	return nil
}

func (s *Storage) ProjectsForUser(_ context.Context, userID int64) ([]models.ProjectSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.ProjectSummary{}
	for k, m := range s.st.memberships {
		if k.userID != userID || !m.IsActive {
			continue
		}
		p, ok := s.st.projects[k.projectID]
		if !ok {
			continue
		}
		out = append(out, models.ProjectSummary{Project: p, Role: m.Role})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

type tx struct {
	st *state
}

func (t *tx) ProjectByChatID(_ context.Context, chatID int64) (*models.Project, error) {
	for _, p := range t.st.projects {
		if p.TgChatID != nil && *p.TgChatID == chatID {
			return &p, nil
		}
	}

	return nil, repository.ErrProjectNotFound
}

func (t *tx) ProjectByChatInstance(_ context.Context, chatInstance string) (*models.Project, error) {
	for _, p := range t.st.projects {
		if p.TgChatInstance != nil && *p.TgChatInstance == chatInstance {
			return &p, nil
		}
	}

	return nil, repository.ErrProjectNotFound
}

func (t *tx) ProjectByKey(_ context.Context, projectKey string) (*models.Project, error) {
	for _, p := range t.st.projects {
		if p.ProjectKey == projectKey {
			return &p, nil
		}
	}

	return nil, repository.ErrProjectNotFound
}

func (t *tx) CreateProject(_ context.Context, np models.NewProject) (*models.Project, error) {
	if t.clashes(0, &np.ProjectKey, np.ChatID, np.ChatInstance) {
		return nil, repository.ErrConflict
	}

	createdAt := np.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	t.st.nextProjID++
	p := models.Project{
		ID:             t.st.nextProjID,
		ProjectKey:     np.ProjectKey,
		Title:          np.Title,
		TgChatID:       np.ChatID,
		TgChatInstance: np.ChatInstance,
		TgChatType:     np.ChatType,
		CreatedAt:      createdAt,
	}
	t.st.projects[p.ID] = p

	return &p, nil
}

func (t *tx) UpdateProjectChat(_ context.Context, projectID int64, upd models.ProjectChatUpdate) (*models.Project, error) {
	p, ok := t.st.projects[projectID]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}

	if p.TgChatID == nil {
		p.TgChatID = upd.ChatID
	}
	if p.TgChatInstance == nil {
		p.TgChatInstance = upd.ChatInstance
	}
	p.Title = upd.Title
	p.TgChatType = upd.ChatType

	if t.clashes(projectID, nil, p.TgChatID, p.TgChatInstance) {
		return nil, repository.ErrConflict
	}

	t.st.projects[projectID] = p

	return &p, nil
}

func (t *tx) UpsertMembership(_ context.Context, projectID, userID int64, role models.Role) (models.Role, error) {
	key := membershipKey{projectID, userID}

	m, ok := t.st.memberships[key]
	if !ok {
		m = models.Membership{ProjectID: projectID, UserID: userID, Role: role}
	}
	if role == models.RoleOwner {
		for k, other := range t.st.memberships {
			if k.projectID == projectID && k.userID != userID && other.Role == models.RoleOwner {
				return "", repository.ErrConflict
			}
		}
		m.Role = models.RoleOwner
	}
	m.IsActive = true
	t.st.memberships[key] = m

	return m.Role, nil
}

func (t *tx) HasOwner(_ context.Context, projectID int64) (bool, error) {
	for k, m := range t.st.memberships {
		if k.projectID == projectID && m.Role == models.RoleOwner {
			return true, nil
		}
	}

	return false, nil
}

// clashes reports whether another project than self already holds one of the
// unique values.
func (t *tx) clashes(self int64, key *string, chatID *int64, chatInstance *string) bool {
	for id, p := range t.st.projects {
		if id == self {
			continue
		}
		if key != nil && p.ProjectKey == *key {
			return true
		}
		if chatID != nil && p.TgChatID != nil && *p.TgChatID == *chatID {
			return true
		}
		if chatInstance != nil && p.TgChatInstance != nil && *p.TgChatInstance == *chatInstance {
			return true
		}
	}

	return false
}
