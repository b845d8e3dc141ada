package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// DefaultRoles are created by Seed on an empty role table.
func DefaultRoles() []model.RoleRequest {
	return []model.RoleRequest{
		{
			Name:        "Administrador",
			Description: "Acceso completo al sistema",
			Permissions: model.Permissions{
				"conversations": {"read": true, "write": true, "delete": true},
				"contacts":      {"read": true, "write": true, "delete": true},
				"users":         {"read": true, "write": true, "delete": true},
				"orders":        {"read": true, "write": true, "delete": true},
				"macros":        {"read": true, "write": true, "delete": true},
				"settings":      {"read": true, "write": true},
				"reports":       {"read": true},
				"whatsapp":      {"send": true, "receive": true},
			},
		},
		{
			Name:        "Agente",
			Description: "Acceso a conversaciones y contactos",
			Permissions: model.Permissions{
				"conversations": {"read": true, "write": true, "delete": false},
				"contacts":      {"read": true, "write": true, "delete": false},
				"users":         {"read": false, "write": false, "delete": false},
				"orders":        {"read": true, "write": true, "delete": false},
				"macros":        {"read": true, "write": false, "delete": false},
				"settings":      {"read": false, "write": false},
				"reports":       {"read": false},
				"whatsapp":      {"send": true, "receive": true},
			},
		},
		{
			Name:        "Supervisor",
			Description: "Acceso a reportes y gestión de conversaciones",
			Permissions: model.Permissions{
				"conversations": {"read": true, "write": true, "delete": true},
				"contacts":      {"read": true, "write": true, "delete": false},
				"users":         {"read": true, "write": false, "delete": false},
				"orders":        {"read": true, "write": true, "delete": false},
				"macros":        {"read": true, "write": true, "delete": true},
				"settings":      {"read": true, "write": false},
				"reports":       {"read": true},
				"whatsapp":      {"send": true, "receive": true},
			},
		},
		{
			Name:        "Usuario",
			Description: "Acceso solo lectura",
			Permissions: model.Permissions{
				"conversations": {"read": true, "write": false, "delete": false},
				"contacts":      {"read": true, "write": false, "delete": false},
				"users":         {"read": false, "write": false, "delete": false},
				"orders":        {"read": true, "write": false, "delete": false},
				"macros":        {"read": true, "write": false, "delete": false},
				"settings":      {"read": false, "write": false},
				"reports":       {"read": false},
				"whatsapp":      {"send": false, "receive": false},
			},
		},
	}
}

// RoleService manages roles.
type RoleService struct {
	roles  store.RoleRepository
	logger *logger.Logger
}

// NewRoleService creates a new role service.
func NewRoleService(roles store.RoleRepository, log *logger.Logger) *RoleService {
	return &RoleService{roles: roles, logger: log}
}

// List returns the active roles.
func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return roles, nil
}

// Get retrieves a role by ID.
func (s *RoleService) Get(ctx context.Context, id string) (*model.Role, error) {
	return s.roles.Get(ctx, id)
}

// Create adds a role. Names are unique among active roles.
func (s *RoleService) Create(ctx context.Context, req *model.RoleRequest) (*model.Role, error) {
	perms := req.Permissions
	if perms == nil {
		perms = model.Permissions{}
	}
	role := &model.Role{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        req.Name,
		Description: req.Description,
		Permissions: datatypes.NewJSONType(perms),
		Active:      true,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	s.logger.Info("role created", zap.String("role_id", role.ID), zap.String("name", role.Name))
	return role, nil
}

// Update replaces a role's name, description and permissions.
func (s *RoleService) Update(ctx context.Context, id string, req *model.RoleRequest) (*model.Role, error) {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	role.Name = req.Name
	role.Description = req.Description
	if req.Permissions != nil {
		role.Permissions = datatypes.NewJSONType(req.Permissions)
	}
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Delete deactivates a role. Users keep their reference to it.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	if err := s.roles.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deactivated", zap.String("role_id", id))
	return nil
}

// Seed creates DefaultRoles when no role exists and reports how many were
// created.
func (s *RoleService) Seed(ctx context.Context) (int, error) {
	n, err := s.roles.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, req := range DefaultRoles() {
		req := req
		if _, err := s.Create(ctx, &req); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return created, fmt.Errorf("failed to seed role %s: %w", req.Name, err)
		}
		created++
	}

	s.logger.Info("default roles seeded", zap.Int("count", created))
	return created, nil
}
