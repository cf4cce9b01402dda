package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
)

func newAuthService(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4}, AuthDependencies{
		UserRepo: store.Users(),
		Engine:   authz.NewEngine(authz.DefaultPolicy()),
	})
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)

	user, token, _, err := svc.RegisterUser(ctx, " Alice ", "Alice@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, token)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.SubjectID)

	_, _, _, err = svc.RegisterUser(ctx, "Alice again", "alice@example.com", "another-pass")
	assert.ErrorIs(t, err, domain.ErrConflict)

	logged, _, _, err := svc.LoginUser(ctx, "ALICE@example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, _, _, err = svc.LoginUser(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = svc.LoginUser(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_InactiveAccount(t *testing.T) {
	ctx := context.Background()
	svc, store := newAuthService(t)
	user, _, _, err := svc.RegisterUser(ctx, "Bob", "bob@example.com", "s3cret-pass")
	require.NoError(t, err)

	user.Active = false
	require.NoError(t, store.Users().Update(ctx, user))

	_, _, _, err = svc.LoginUser(ctx, "bob@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	user, _, _, err := svc.RegisterUser(ctx, "Carol", "carol@example.com", "old-password")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "not-it", "new-password"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "old-password", "new-password"))

	_, _, _, err = svc.LoginUser(ctx, "carol@example.com", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = svc.LoginUser(ctx, "carol@example.com", "new-password")
	assert.NoError(t, err)
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	agent := domain.Actor{ID: "agent-1", Role: domain.RoleAgent}

	_, err := svc.CreateAccount(ctx, agent, "Dan", "dan@example.com", "password1", domain.RoleAgent)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.CreateAccount(ctx, admin, "Dan", "dan@example.com", "password1", domain.Role("auditor"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	created, err := svc.CreateAccount(ctx, admin, "Dan", "dan@example.com", "password1", domain.RoleAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, created.Role)
	assert.True(t, created.Active)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	svc, store := newAuthService(t)

	require.NoError(t, svc.EnsureAdmin(ctx, "", ""))
	assert.ErrorIs(t, svc.EnsureAdmin(ctx, "root@example.com", ""), domain.ErrConfiguration)

	require.NoError(t, svc.EnsureAdmin(ctx, "Root@Example.com", "bootstrap-pass"))
	admin, err := store.Users().GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	require.NoError(t, svc.EnsureAdmin(ctx, "root@example.com", "ignored"), "existing accounts are left alone")
	_, _, _, err = svc.LoginUser(ctx, "root@example.com", "bootstrap-pass")
	assert.NoError(t, err)
}
