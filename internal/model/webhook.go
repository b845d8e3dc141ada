package model

import (
	"strings"
)

// InboundEvent is one inbound message notification from the provider,
// decoded from either the provider's form fields or a JSON body.
type InboundEvent struct {
	MessageID string `json:"messageId"`
	AccountID string `json:"accountId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	NumMedia  int    `json:"numMedia,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaContentType,omitempty"`
}

// HasMedia reports whether the event carries an attachment.
func (e *InboundEvent) HasMedia() bool {
	return e.NumMedia > 0 && e.MediaURL != ""
}

// MessageType derives the stored message type from the attachment content
// type.
func (e *InboundEvent) MessageType() MessageType {
	if !e.HasMedia() {
		return MessageText
	}
	ct := strings.ToLower(e.MediaType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MessageImage
	case strings.HasPrefix(ct, "audio/"):
		return MessageAudio
	case strings.HasPrefix(ct, "video/"):
		return MessageVideo
	default:
		return MessageDocument
	}
}

// Content returns the text to store for the event. Attachments without a
// caption store the media URL.
func (e *InboundEvent) Content() string {
	if e.Body != "" {
		return e.Body
	}
	if e.HasMedia() {
		return e.MediaURL
	}
	return ""
}

// WebhookAck is the acknowledgement returned to the provider.
type WebhookAck struct {
	Success bool `json:"success"`
}
