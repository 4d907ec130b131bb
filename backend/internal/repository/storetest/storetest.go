// Package storetest holds the behaviour every repository.Storage must show.
// Each implementation runs it from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkrMiniApp/backend/internal/domain/models"
	"vkrMiniApp/backend/internal/repository"
)

type Factory func(t *testing.T) repository.Storage

func Run(t *testing.T, newStorage Factory) {
	tests := map[string]func(t *testing.T, s repository.Storage){
		"UpsertUserKeepsOneRow":          testUpsertUserKeepsOneRow,
		"UserNotFound":                   testUserNotFound,
		"ProjectLookups":                 testProjectLookups,
		"DuplicateChatIDConflicts":       testDuplicateChatIDConflicts,
		"DuplicateChatInstanceConflicts": testDuplicateChatInstanceConflicts,
		"UpdateProjectChatCoalesces":     testUpdateProjectChatCoalesces,
		"MembershipUpsertKeepsRole":      testMembershipUpsertKeepsRole,
		"OneOwnerPerProject":             testOneOwnerPerProject,
		"ProjectsForUserOrdering":        testProjectsForUserOrdering,
		"DeleteProjectCascades":          testDeleteProjectCascades,
		"TxRollsBack":                    testTxRollsBack,
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			s := newStorage(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func ptr[T any](v T) *T { return &v }

var loginAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func mustUser(t *testing.T, s repository.Storage, tgID int64) *models.User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), models.UserUpsert{TgID: tgID, FirstName: "user", LoginAt: loginAt})
	require.NoError(t, err)
	return u
}

func mustProject(t *testing.T, s repository.Storage, np models.NewProject) *models.Project {
	t.Helper()
	var p *models.Project
	err := s.InTx(context.Background(), func(tx repository.ProjectTx) error {
		var err error
		p, err = tx.CreateProject(context.Background(), np)
		return err
	})
	require.NoError(t, err)
	return p
}

func testUpsertUserKeepsOneRow(t *testing.T, s repository.Storage) {
	ctx := context.Background()

	first, err := s.UpsertUser(ctx, models.UserUpsert{TgID: 42, Username: ptr("old"), FirstName: "Ann", LoginAt: loginAt})
	require.NoError(t, err)

	second, err := s.UpsertUser(ctx, models.UserUpsert{
		TgID:      42,
		Username:  ptr("new"),
		FirstName: "Ann",
		LastName:  ptr("Lee"),
		PhotoURL:  ptr("https://t.me/i/userpic/1.jpg"),
		LoginAt:   loginAt.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Username)
	assert.Equal(t, "new", *second.Username)
	require.NotNil(t, second.LastName)
	assert.Equal(t, "Lee", *second.LastName)
	assert.True(t, second.LastLoginAt.After(second.CreatedAt))

	found, err := s.UserByTgID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	require.NotNil(t, found.Username)
	assert.Equal(t, "new", *found.Username)
	assert.True(t, found.CreatedAt.Equal(first.CreatedAt), "created_at is set once")
}

func testUserNotFound(t *testing.T, s repository.Storage) {
	_, err := s.UserByTgID(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func testProjectLookups(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	created := mustProject(t, s, models.NewProject{
		ProjectKey:   "key-1",
		Title:        "Team",
		ChatID:       ptr(int64(-100)),
		ChatInstance: ptr("inst-1"),
		ChatType:     ptr("group"),
	})

	err := s.InTx(ctx, func(tx repository.ProjectTx) error {
		byID, err := tx.ProjectByChatID(ctx, -100)
		require.NoError(t, err)
		assert.Equal(t, created.ID, byID.ID)

		byInstance, err := tx.ProjectByChatInstance(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byInstance.ID)

		byKey, err := tx.ProjectByKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "Team", byKey.Title)

		_, err = tx.ProjectByChatID(ctx, -200)
		assert.ErrorIs(t, err, repository.ErrProjectNotFound)

		_, err = tx.ProjectByChatInstance(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrProjectNotFound)

		return nil
	})
	require.NoError(t, err)
}

func testDuplicateChatIDConflicts(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	mustProject(t, s, models.NewProject{ProjectKey: "a", Title: "A", ChatID: ptr(int64(-1))})

	err := s.InTx(ctx, func(tx repository.ProjectTx) error {
		_, err := tx.CreateProject(ctx, models.NewProject{ProjectKey: "b", Title: "B", ChatID: ptr(int64(-1))})
		return err
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	// projects without chat ids never clash with each other
	mustProject(t, s, models.NewProject{ProjectKey: "c", Title: "C"})
	mustProject(t, s, models.NewProject{ProjectKey: "d", Title: "D"})
}

func testDuplicateChatInstanceConflicts(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	mustProject(t, s, models.NewProject{ProjectKey: "a", Title: "A", ChatInstance: ptr("inst")})

	err := s.InTx(ctx, func(tx repository.ProjectTx) error {
		_, err := tx.CreateProject(ctx, models.NewProject{ProjectKey: "b", Title: "B", ChatInstance: ptr("inst")})
		return err
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func testUpdateProjectChatCoalesces(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, models.NewProject{ProjectKey: "k", Title: "Old", ChatInstance: ptr("inst")})

	var updated *models.Project
	err := s.InTx(ctx, func(tx repository.ProjectTx) error {
		var err error
		updated, err = tx.UpdateProjectChat(ctx, p.ID, models.ProjectChatUpdate{
			ChatID:       ptr(int64(-55)),
			ChatInstance: ptr("other"),
			ChatType:     ptr("supergroup"),
			Title:        "New",
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "k", updated.ProjectKey)
	assert.Equal(t, "New", updated.Title)
	require.NotNil(t, updated.TgChatID)
	assert.Equal(t, int64(-55), *updated.TgChatID, "null chat id is backfilled")
	require.NotNil(t, updated.TgChatInstance)
	assert.Equal(t, "inst", *updated.TgChatInstance, "existing chat instance is kept")
	require.NotNil(t, updated.TgChatType)
	assert.Equal(t, "supergroup", *updated.TgChatType)
}

func testMembershipUpsertKeepsRole(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	owner := mustUser(t, s, 1)
	p := mustProject(t, s, models.NewProject{ProjectKey: "k", Title: "T", ChatID: ptr(int64(-1))})

	upsert := func(userID int64, role models.Role) models.Role {
		var got models.Role
		err := s.InTx(ctx, func(tx repository.ProjectTx) error {
			var err error
			got, err = tx.UpsertMembership(ctx, p.ID, userID, role)
			return err
		})
		require.NoError(t, err)
		return got
	}

	assert.Equal(t, models.RoleOwner, upsert(owner.ID, models.RoleOwner))
	assert.Equal(t, models.RoleOwner, upsert(owner.ID, models.RoleMember), "owner is never downgraded")

	require.NoError(t, s.DeactivateMembership(ctx, p.ID, owner.ID))
	_, err := s.ActiveMembership(ctx, p.ID, owner.ID)
	assert.ErrorIs(t, err, repository.ErrMembershipNotFound)

	assert.Equal(t, models.RoleOwner, upsert(owner.ID, models.RoleMember))
	m, err := s.ActiveMembership(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, m.IsActive, "re-launch reactivates")
	assert.Equal(t, models.RoleOwner, m.Role)

	assert.ErrorIs(t, s.DeactivateMembership(ctx, p.ID, 9999), repository.ErrMembershipNotFound)
}

func testOneOwnerPerProject(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	first, second := mustUser(t, s, 1), mustUser(t, s, 2)
	p := mustProject(t, s, models.NewProject{ProjectKey: "k1", Title: "T", ChatID: ptr(int64(-1))})
	q := mustProject(t, s, models.NewProject{ProjectKey: "k2", Title: "T", ChatID: ptr(int64(-2))})

	hasOwner := func(projectID int64) bool {
		var owned bool
		err := s.InTx(ctx, func(tx repository.ProjectTx) error {
			var err error
			owned, err = tx.HasOwner(ctx, projectID)
			return err
		})
		require.NoError(t, err)
		return owned
	}
	upsert := func(projectID, userID int64, role models.Role) (models.Role, error) {
		var got models.Role
		err := s.InTx(ctx, func(tx repository.ProjectTx) error {
			var err error
			got, err = tx.UpsertMembership(ctx, projectID, userID, role)
			return err
		})
		return got, err
	}

	_, err := upsert(p.ID, second.ID, models.RoleMember)
	require.NoError(t, err)
	assert.False(t, hasOwner(p.ID), "members do not own")

	role, err := upsert(p.ID, first.ID, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)
	assert.True(t, hasOwner(p.ID))
	assert.False(t, hasOwner(q.ID))

	_, err = upsert(p.ID, second.ID, models.RoleOwner)
	assert.ErrorIs(t, err, repository.ErrConflict)
	m, err := s.ActiveMembership(ctx, p.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	_, err = upsert(q.ID, second.ID, models.RoleMember)
	require.NoError(t, err)
	role, err = upsert(q.ID, second.ID, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role, "an owner request promotes an existing member")
}

func testProjectsForUserOrdering(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	u := mustUser(t, s, 7)

	list, err := s.ProjectsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.Empty(t, list)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := mustProject(t, s, models.NewProject{ProjectKey: "older", Title: "older", CreatedAt: base})
	tieA := mustProject(t, s, models.NewProject{ProjectKey: "tie-a", Title: "tie-a", CreatedAt: base.Add(time.Hour)})
	tieB := mustProject(t, s, models.NewProject{ProjectKey: "tie-b", Title: "tie-b", CreatedAt: base.Add(time.Hour)})
	inactive := mustProject(t, s, models.NewProject{ProjectKey: "inactive", Title: "inactive", CreatedAt: base.Add(2 * time.Hour)})
	mustProject(t, s, models.NewProject{ProjectKey: "foreign", Title: "foreign", CreatedAt: base.Add(3 * time.Hour)})

	err = s.InTx(ctx, func(tx repository.ProjectTx) error {
		for _, p := range []*models.Project{older, tieA, tieB, inactive} {
			if _, err := tx.UpsertMembership(ctx, p.ID, u.ID, models.RoleMember); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.DeactivateMembership(ctx, inactive.ID, u.ID))

	list, err = s.ProjectsForUser(ctx, u.ID)
	require.NoError(t, err)

	keys := make([]string, 0, len(list))
	for _, p := range list {
		keys = append(keys, p.ProjectKey)
		assert.Equal(t, models.RoleMember, p.Role)
	}
	assert.Equal(t, []string{"tie-b", "tie-a", "older"}, keys)
}

func testDeleteProjectCascades(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	u := mustUser(t, s, 3)
	p := mustProject(t, s, models.NewProject{ProjectKey: "k", Title: "T", ChatID: ptr(int64(-9))})

	err := s.InTx(ctx, func(tx repository.ProjectTx) error {
		_, err := tx.UpsertMembership(ctx, p.ID, u.ID, models.RoleOwner)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.ActiveMembership(ctx, p.ID, u.ID)
	assert.ErrorIs(t, err, repository.ErrMembershipNotFound)

	list, err := s.ProjectsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), repository.ErrProjectNotFound)

	// the chat id is free again
	mustProject(t, s, models.NewProject{ProjectKey: "k2", Title: "T", ChatID: ptr(int64(-9))})
}

func testTxRollsBack(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx repository.ProjectTx) error {
		if _, err := tx.CreateProject(ctx, models.NewProject{ProjectKey: "gone", Title: "T", ChatID: ptr(int64(-3))}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.InTx(ctx, func(tx repository.ProjectTx) error {
		_, err := tx.ProjectByKey(ctx, "gone")
		assert.ErrorIs(t, err, repository.ErrProjectNotFound)
		return nil
	})
	require.NoError(t, err)
}
