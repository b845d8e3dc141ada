package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/authz"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

func newUserServices(t *testing.T) (*RoleService, *UserService) {
	t.Helper()
	st := store.NewMemoryStore()
	roles := NewRoleService(st.Roles(), logger.Nop())
	users := NewUserService(st.Users(), st.Roles(), "test-secret", time.Hour, logger.Nop())
	return roles, users
}

func roleID(t *testing.T, roles *RoleService, name string) string {
	t.Helper()
	list, err := roles.List(context.Background())
	require.NoError(t, err)
	for _, r := range list {
		if r.Name == name {
			return r.ID
		}
	}
	t.Fatalf("role %s not seeded", name)
	return ""
}

func TestSeedRoles(t *testing.T) {
	roles, _ := newUserServices(t)
	ctx := context.Background()

	n, err := roles.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = roles.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	admin := list[0]
	assert.Equal(t, "Administrador", admin.Name)
	assert.True(t, admin.Allows("whatsapp", "send"))

	for _, r := range list {
		if r.Name == "Usuario" {
			assert.False(t, r.Allows("whatsapp", "send"))
			assert.True(t, r.Allows("conversations", "read"))
		}
	}
}

func TestRoleLifecycle(t *testing.T) {
	roles, _ := newUserServices(t)
	ctx := context.Background()

	r, err := roles.Create(ctx, &model.RoleRequest{
		Name:        "Auditor",
		Permissions: model.Permissions{"reports": {"read": true}},
	})
	require.NoError(t, err)
	assert.True(t, r.Allows("reports", "read"))

	_, err = roles.Create(ctx, &model.RoleRequest{Name: "Auditor"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	updated, err := roles.Update(ctx, r.ID, &model.RoleRequest{
		Name:        "Auditor",
		Description: "solo lectura",
		Permissions: model.Permissions{"reports": {"read": false}},
	})
	require.NoError(t, err)
	assert.False(t, updated.Allows("reports", "read"))

	require.NoError(t, roles.Delete(ctx, r.ID))
	list, err := roles.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	// the name is free again once the old role is inactive
	_, err = roles.Create(ctx, &model.RoleRequest{Name: "Auditor"})
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	roles, users := newUserServices(t)
	ctx := context.Background()
	_, err := roles.Seed(ctx)
	require.NoError(t, err)

	u, err := users.Create(ctx, &model.CreateUserRequest{
		Email:    "Agente@Example.com",
		Password: "correct-horse",
		Name:     "Carla",
		RoleID:   roleID(t, roles, "Agente"),
	})
	require.NoError(t, err)
	assert.Equal(t, "agente@example.com", u.Email)
	assert.Equal(t, "Agente", u.RoleName())
	assert.NotEqual(t, "correct-horse", u.PasswordHash)

	resp, err := users.Login(ctx, &model.LoginRequest{Email: "agente@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.EqualValues(t, 3600, resp.ExpiresIn)

	p, err := authz.ParseToken("test-secret", resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, "Agente", p.Role)

	_, err = users.Login(ctx, &model.LoginRequest{Email: "agente@example.com", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = users.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestCreateUserRejectsUnknownRoleAndDuplicateEmail(t *testing.T) {
	roles, users := newUserServices(t)
	ctx := context.Background()
	_, err := roles.Seed(ctx)
	require.NoError(t, err)

	_, err = users.Create(ctx, &model.CreateUserRequest{Email: "a@example.com", Password: "password1", Name: "A", RoleID: "0190f5a4-0000-7000-8000-000000000000"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = users.Create(ctx, &model.CreateUserRequest{Email: "a@example.com", Password: "password1", Name: "A"})
	require.NoError(t, err)
	_, err = users.Create(ctx, &model.CreateUserRequest{Email: "A@example.com", Password: "password1", Name: "A"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestListAgents(t *testing.T) {
	roles, users := newUserServices(t)
	ctx := context.Background()
	_, err := roles.Seed(ctx)
	require.NoError(t, err)

	for email, role := range map[string]string{
		"agent1@example.com": "Agente",
		"agent2@example.com": "Agente",
		"boss@example.com":   "Supervisor",
	} {
		_, err := users.Create(ctx, &model.CreateUserRequest{Email: email, Password: "password1", Name: email, RoleID: roleID(t, roles, role)})
		require.NoError(t, err)
	}

	agents, err := users.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}

func TestUpdateUser(t *testing.T) {
	roles, users := newUserServices(t)
	ctx := context.Background()
	_, err := roles.Seed(ctx)
	require.NoError(t, err)

	u, err := users.Create(ctx, &model.CreateUserRequest{Email: "a@example.com", Password: "password1", Name: "A"})
	require.NoError(t, err)
	assert.Empty(t, u.RoleName())

	updated, err := users.Update(ctx, u.ID, &model.UpdateUserRequest{
		Status: model.UserAvailable,
		RoleID: roleID(t, roles, "Supervisor"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.UserAvailable, updated.Status)
	assert.Equal(t, "Supervisor", updated.RoleName())
	assert.Equal(t, "A", updated.Name)

	require.NoError(t, users.Delete(ctx, u.ID))
	_, err = users.Get(ctx, u.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEnsureAdmin(t *testing.T) {
	roles, users := newUserServices(t)
	ctx := context.Background()

	_, err := users.EnsureAdmin(ctx, "admin@example.com", "s3cret-pass")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = roles.Seed(ctx)
	require.NoError(t, err)

	created, err := users.EnsureAdmin(ctx, "admin@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = users.EnsureAdmin(ctx, "admin@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = users.EnsureAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)

	resp, err := users.Login(ctx, &model.LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Administrador", resp.User.RoleName())
}
