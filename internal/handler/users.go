package handler

import (
	"net/http"

	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// UserHandler handles login, user and role endpoints.
type UserHandler struct {
	users  *service.UserService
	roles  *service.RoleService
	logger *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users *service.UserService, roles *service.RoleService, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, roles: roles, logger: log}
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "log in")
		return
	}

	resp, err := h.users.Login(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "log in")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUsers handles GET /api/v1/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err, "list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// ListAgents handles GET /api/v1/users/agents
func (h *UserHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.users.ListAgents(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err, "list agents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": agents})
}

// GetUser handles GET /api/v1/users/:id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "get user")
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err, "get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "create user")
		return
	}

	u, err := h.users.Create(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "create user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// UpdateUser handles PUT /api/v1/users/:id
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "update user")
		return
	}

	var req model.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "update user")
		return
	}

	u, err := h.users.Update(r.Context(), id, &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "update user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "delete user")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, h.logger, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoles handles GET /api/v1/roles
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err, "list roles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// GetRole handles GET /api/v1/roles/:id
func (h *UserHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "get role")
		return
	}

	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err, "get role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// CreateRole handles POST /api/v1/roles
func (h *UserHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req model.RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "create role")
		return
	}

	role, err := h.roles.Create(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "create role")
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// UpdateRole handles PUT /api/v1/roles/:id
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "update role")
		return
	}

	var req model.RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "update role")
		return
	}

	role, err := h.roles.Update(r.Context(), id, &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "update role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /api/v1/roles/:id
// Roles are deactivated, not removed.
func (h *UserHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "delete role")
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, h.logger, err, "delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SeedRoles handles POST /api/v1/roles/seed
func (h *UserHandler) SeedRoles(w http.ResponseWriter, r *http.Request) {
	n, err := h.roles.Seed(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err, "seed roles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": n})
}
