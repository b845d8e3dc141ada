package model

import (
	"time"

	"gorm.io/gorm"
)

// Contact is an external person reachable over WhatsApp, keyed by the
// canonical phone number.
type Contact struct {
	ID        string         `json:"id" gorm:"type:uuid;primaryKey"`
	Phone     string         `json:"phone_number" gorm:"column:phone_number;type:varchar(20);not null"`
	Name      string         `json:"name" gorm:"type:varchar(255)"`
	AvatarURL string         `json:"avatar_url,omitempty" gorm:"type:varchar(500)"`
	LastSeen  *time.Time     `json:"last_seen,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// CreateContactRequest is the request to create a contact.
type CreateContactRequest struct {
	Phone string `json:"phone_number" validate:"required,min=4,max=32"`
	Name  string `json:"name,omitempty" validate:"max=255"`
}

// UpdateContactRequest renames a contact.
type UpdateContactRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url,max=500"`
}

// ListContactsResponse is the response for listing contacts.
type ListContactsResponse struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}
