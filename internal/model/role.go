package model

import (
	"time"

	"gorm.io/datatypes"
)

// Permissions maps a resource to the actions a role may perform on it, e.g.
// {"conversations": {"read": true, "write": true, "delete": false}}.
type Permissions map[string]map[string]bool

// Allows reports whether action is granted on resource.
func (p Permissions) Allows(resource, action string) bool {
	actions, ok := p[resource]
	if !ok {
		return false
	}
	return actions[action]
}

// Role is a named bundle of permissions.
type Role struct {
	ID          string                         `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string                         `json:"name" gorm:"type:varchar(100);not null"`
	Description string                         `json:"description,omitempty" gorm:"type:varchar(255)"`
	Permissions datatypes.JSONType[Permissions] `json:"permissions" gorm:"type:jsonb;not null"`
	Active      bool                           `json:"is_active" gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}

// Allows reports whether the role grants action on resource.
func (r *Role) Allows(resource, action string) bool {
	if r == nil || !r.Active {
		return false
	}
	return r.Permissions.Data().Allows(resource, action)
}

// RoleRequest creates or updates a role.
type RoleRequest struct {
	Name        string      `json:"name" validate:"required,max=100"`
	Description string      `json:"description,omitempty" validate:"max=255"`
	Permissions Permissions `json:"permissions"`
}
