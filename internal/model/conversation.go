// Package model defines data structures for the support inbox.
package model

import (
	"time"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusActive   ConversationStatus = "active"
	StatusPaused   ConversationStatus = "paused"
	StatusResolved ConversationStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusResolved:
		return true
	}
	return false
}

// Open reports whether a conversation in this status receives new inbound
// messages.
func (s ConversationStatus) Open() bool {
	return s != StatusResolved
}

// Priority is the triage priority of a conversation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Conversation is a thread between one contact and the support team.
type Conversation struct {
	ID              string             `json:"id" gorm:"type:uuid;primaryKey"`
	ContactID       string             `json:"contact_id" gorm:"type:uuid;not null;index"`
	AssignedAgentID *string            `json:"assigned_agent_id,omitempty" gorm:"type:uuid;index"`
	Status          ConversationStatus `json:"status" gorm:"type:varchar(16);not null;default:active;index"`
	Priority        Priority           `json:"priority" gorm:"type:varchar(16);not null;default:medium"`
	Notes           string             `json:"notes,omitempty" gorm:"type:text"`
	LastMessageAt   *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	Contact *Contact `json:"contact,omitempty" gorm:"foreignKey:ContactID"`
}

// ConversationFilter narrows a conversation listing.
type ConversationFilter struct {
	Status          ConversationStatus
	AssignedAgentID string
	ContactID       string
	Limit           int
	Offset          int
}

// CreateConversationRequest is the request to open a conversation explicitly.
type CreateConversationRequest struct {
	ContactID string   `json:"contact_id" validate:"required,uuid"`
	Priority  Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Notes     string   `json:"notes,omitempty" validate:"max=2000"`
}

// AssignConversationRequest assigns a conversation to an agent.
type AssignConversationRequest struct {
	AgentID string `json:"agent_id" validate:"required,uuid"`
}

// TransitionConversationRequest changes a conversation status.
type TransitionConversationRequest struct {
	Status ConversationStatus `json:"status" validate:"required,oneof=active paused resolved"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
