package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/authz"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// UserService manages operators and issues login tokens.
type UserService struct {
	users     store.UserRepository
	roles     store.RoleRepository
	jwtSecret string
	jwtTTL    time.Duration
	logger    *logger.Logger
}

// NewUserService creates a new user service.
func NewUserService(users store.UserRepository, roles store.RoleRepository, jwtSecret string, jwtTTL time.Duration, log *logger.Logger) *UserService {
	return &UserService{
		users:     users,
		roles:     roles,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		logger:    log,
	}
}

// Login checks credentials and issues a bearer token carrying the user's
// role name.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	invalid := apperr.New(apperr.KindUnauthorized, "invalid credentials")

	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}

	token, err := authz.IssueToken(s.jwtSecret, s.jwtTTL, authz.Principal{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.RoleName(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return &model.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtTTL.Seconds()),
		User:        u,
	}, nil
}

// Create registers a user with a hashed password.
func (s *UserService) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Name:         req.Name,
		Status:       model.UserOffline,
	}
	if req.RoleID != "" {
		if _, err := s.roles.Get(ctx, req.RoleID); err != nil {
			return nil, err
		}
		roleID := req.RoleID
		u.RoleID = &roleID
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", u.ID))
	return s.users.Get(ctx, u.ID)
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.Get(ctx, id)
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// ListAgents returns the users whose role is an agent role.
func (s *UserService) ListAgents(ctx context.Context) ([]model.User, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	agents := make([]model.User, 0, len(users))
	for _, u := range users {
		if authz.NormalizeRole(u.RoleName()) == authz.RoleAgent {
			agents = append(agents, u)
		}
	}
	return agents, nil
}

// Update changes the given user attributes.
func (s *UserService) Update(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != "" {
		u.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Status != "" {
		u.Status = req.Status
	}
	if req.RoleID != "" {
		if _, err := s.roles.Get(ctx, req.RoleID); err != nil {
			return nil, err
		}
		roleID := req.RoleID
		u.RoleID = &roleID
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, id)
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// EnsureAdmin creates an administrator account for email unless a user
// with that email exists. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return false, fmt.Errorf("failed to look up admin user: %w", err)
	}

	roles, err := s.roles.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list roles: %w", err)
	}
	var roleID string
	for _, r := range roles {
		if authz.NormalizeRole(r.Name) == authz.RoleAdmin {
			roleID = r.ID
			break
		}
	}
	if roleID == "" {
		return false, apperr.NotFound("no admin role to assign")
	}

	if _, err := s.Create(ctx, &model.CreateUserRequest{
		Email:    email,
		Password: password,
		Name:     "Administrator",
		RoleID:   roleID,
	}); err != nil {
		return false, err
	}
	return true, nil
}
