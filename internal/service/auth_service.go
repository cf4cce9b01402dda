package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService coordinates registration, login and account management.
type AuthService struct {
	users      repository.UserRepository
	engine     *authz.Engine
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Engine   *authz.Engine
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		engine:     deps.Engine,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// RegisterUser creates a self-service account with the user role.
func (s *AuthService) RegisterUser(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.createUser(ctx, name, email, password, domain.RoleUser)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// CreateAccount lets an actor holding users.manage create an account of any role.
func (s *AuthService) CreateAccount(ctx context.Context, actor domain.Actor, name, email, password string, role domain.Role) (*domain.User, error) {
	if err := s.engine.Authorize(authz.Request{Role: actor.Role, Action: authz.ActionManage, Subject: authz.SubjectUser, ActorID: actor.ID}); err != nil {
		s.logger.Info("authorization denied",
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
			zap.String("action", string(authz.ActionManage)),
			zap.String("subject", string(authz.SubjectUser)))
		return nil, err
	}
	if !s.knownRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	return s.createUser(ctx, name, email, password, role)
}

// LoginUser authenticates an account.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if !user.Active {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return nil, err
	}
	s.logger.Info("account created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

func (s *AuthService) knownRole(role domain.Role) bool {
	for _, r := range s.engine.Policy().Roles() {
		if r == role {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EnsureAdmin creates an admin account for email unless one already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: bootstrap admin password is empty", domain.ErrConfiguration)
	}
	_, err = s.createUser(ctx, "Administrator", email, password, domain.RoleAdmin)
	return err
}
