// Package store provides persistence for contacts, conversations, messages,
// roles and users.
//
// Lookups that miss return an apperr.KindNotFound error; unique constraint
// violations return apperr.KindConflict.
package store

import (
	"context"
	"time"

	"github.com/capitalize-ai/support-inbox/internal/model"
)

// Store groups the repositories of one backend.
type Store interface {
	Contacts() ContactRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	Roles() RoleRepository
	Users() UserRepository

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// ContactRepository persists contacts. Phone numbers are unique among
// non-deleted contacts.
type ContactRepository interface {
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
	Get(ctx context.Context, id string) (*model.Contact, error)
	List(ctx context.Context, limit, offset int) ([]model.Contact, int, error)
	Create(ctx context.Context, c *model.Contact) error
	Update(ctx context.Context, c *model.Contact) error
	UpdateLastSeen(ctx context.Context, id string, ts time.Time) error
	// Delete soft-deletes the contact, releasing its phone number.
	Delete(ctx context.Context, id string) error
}

// ConversationRepository persists conversations. At most one conversation
// per contact may be open.
type ConversationRepository interface {
	// FindOpenByContact returns the most recently updated open conversation.
	FindOpenByContact(ctx context.Context, contactID string) (*model.Conversation, error)
	Get(ctx context.Context, id string) (*model.Conversation, error)
	List(ctx context.Context, f model.ConversationFilter) ([]model.Conversation, int, error)
	Create(ctx context.Context, c *model.Conversation) error
	Update(ctx context.Context, c *model.Conversation) error
	// Delete removes the conversation and its messages.
	Delete(ctx context.Context, id string) error
}

// MessageRepository persists messages. Provider message ids are unique.
type MessageRepository interface {
	FindByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error)
	// Create inserts m and assigns m.Seq.
	Create(ctx context.Context, m *model.Message) error
	// ListByConversation returns messages with Seq > afterSeq ordered by
	// Seq. Seq is both the creation order and the paging cursor.
	ListByConversation(ctx context.Context, conversationID string, afterSeq uint64, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID string, ts time.Time) (int64, error)
}

// RoleRepository persists roles. Role names are unique among active roles.
type RoleRepository interface {
	// FindByName returns the active role with the given name.
	FindByName(ctx context.Context, name string) (*model.Role, error)
	Get(ctx context.Context, id string) (*model.Role, error)
	// List returns active roles ordered by name.
	List(ctx context.Context) ([]model.Role, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, r *model.Role) error
	Update(ctx context.Context, r *model.Role) error
	Deactivate(ctx context.Context, id string) error
}

// UserRepository persists users. Returned users have their role loaded.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
}
