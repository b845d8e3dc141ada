package model

import (
	"time"
)

// SenderKind identifies who wrote a message.
type SenderKind string

const (
	SenderAgent   SenderKind = "agent"
	SenderContact SenderKind = "contact"
)

// MessageType is the content type of a message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageDocument MessageType = "document"
	MessageAudio    MessageType = "audio"
	MessageVideo    MessageType = "video"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageDocument, MessageAudio, MessageVideo:
		return true
	}
	return false
}

// Message is one entry of a conversation.
type Message struct {
	// Identity
	ID             string `json:"id" gorm:"type:uuid;primaryKey"`
	Seq            uint64 `json:"seq" gorm:"autoIncrement;not null;uniqueIndex;index:idx_messages_conversation_order,priority:2"`
	ConversationID string `json:"conversation_id" gorm:"type:uuid;not null;index:idx_messages_conversation_order,priority:1"`

	// Content
	SenderKind SenderKind  `json:"sender_kind" gorm:"type:varchar(16);not null"`
	SenderID   *string     `json:"sender_id,omitempty" gorm:"type:uuid;index"`
	Content    string      `json:"content" gorm:"type:text;not null"`
	Type       MessageType `json:"message_type" gorm:"column:message_type;type:varchar(16);not null;default:text"`

	// Provider
	FromProvider      bool    `json:"is_from_provider" gorm:"not null;default:false"`
	ProviderMessageID *string `json:"provider_message_id,omitempty" gorm:"type:varchar(255);uniqueIndex"`

	// Read state
	IsRead bool       `json:"is_read" gorm:"not null;default:false"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// RecordInput describes a message to persist.
type RecordInput struct {
	ConversationID    string
	SenderKind        SenderKind
	SenderID          *string
	Content           string
	Type              MessageType
	FromProvider      bool
	ProviderMessageID string
}

// SendMessageRequest is the request to send an agent reply.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"has_more"`
	LastSequence uint64    `json:"last_sequence"`
}
