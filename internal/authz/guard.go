// Package authz decides whether an authenticated principal may perform an
// operation.
//
// Role names reach the guard from two sources: Spanish display names stored
// on roles ("Administrador", "Agente") and English names carried in tokens
// ("admin", "agent"). NormalizeRole is the single place where a role name is
// made comparable; every role comparison in the module goes through it.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
)

// Canonical role names.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
)

// Principal is the authenticated caller of an API operation.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Decision is the outcome of an authorization check. Reason explains a
// denial for audit logs and is never shown to callers.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err converts a denial to an apperr.KindForbidden error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden("forbidden")
}

// NormalizeRole maps a role name onto its canonical form: "admin*" → admin,
// "super*" → supervisor, "agent*"/"agente*" → agent. Other names are
// returned trimmed and lowercased.
func NormalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	switch {
	case strings.HasPrefix(r, "admin"):
		return RoleAdmin
	case strings.HasPrefix(r, "super"):
		return RoleSupervisor
	case strings.HasPrefix(r, "agent"):
		// covers "agente"
		return RoleAgent
	default:
		return r
	}
}

// RoleLookup resolves stored roles for permission checks.
type RoleLookup interface {
	FindByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

// Guard evaluates requirements against principals.
type Guard struct {
	roles RoleLookup
}

// NewGuard creates a guard. roles may be nil when no requirement names a
// permission.
func NewGuard(roles RoleLookup) *Guard {
	return &Guard{roles: roles}
}

// Authorize checks p against a set of required role names. An empty set
// allows everyone, including anonymous callers.
func (g *Guard) Authorize(p *Principal, required []string) Decision {
	if len(required) == 0 {
		return allow()
	}
	if p == nil {
		return deny("no authenticated principal")
	}
	if strings.TrimSpace(p.Role) == "" {
		return deny("user %s has no role", p.ID)
	}

	role := NormalizeRole(p.Role)
	for _, r := range required {
		if NormalizeRole(r) == role {
			return allow()
		}
	}
	return deny("user %s with role %q (%s) requires one of [%s]",
		p.ID, p.Role, role, strings.Join(required, ", "))
}

// Permits checks that p's stored role grants permission, written as
// "resource:action" (e.g. "whatsapp:send").
func (g *Guard) Permits(ctx context.Context, p *Principal, permission string) Decision {
	resource, action, ok := strings.Cut(permission, ":")
	if !ok {
		return deny("malformed permission %q", permission)
	}
	if p == nil {
		return deny("no authenticated principal")
	}
	if strings.TrimSpace(p.Role) == "" {
		return deny("user %s has no role", p.ID)
	}
	if g.roles == nil {
		return deny("no role source configured for permission %s", permission)
	}

	role, err := g.findRole(ctx, p.Role)
	if err != nil {
		return deny("role %q of user %s not resolvable: %v", p.Role, p.ID, err)
	}
	if !role.Allows(resource, action) {
		return deny("role %q of user %s lacks %s", role.Name, p.ID, permission)
	}
	return allow()
}

// Check evaluates a full requirement: the role set first, then the
// permission when one is named.
func (g *Guard) Check(ctx context.Context, p *Principal, req Requirement) Decision {
	if d := g.Authorize(p, req.Roles); !d.Allowed {
		return d
	}
	if req.Permission == "" {
		return allow()
	}
	return g.Permits(ctx, p, req.Permission)
}

// findRole looks a role up by its exact name and falls back to comparing
// normalized names, so a token carrying "admin" finds "Administrador".
func (g *Guard) findRole(ctx context.Context, name string) (*model.Role, error) {
	role, err := g.roles.FindByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	roles, err := g.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	want := NormalizeRole(name)
	for i := range roles {
		if NormalizeRole(roles[i].Name) == want {
			return &roles[i], nil
		}
	}
	return nil, apperr.NotFound("role %q not found", name)
}
