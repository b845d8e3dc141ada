package model

import (
	"strings"
)

// ProviderStatus is the delivery state of an outbound message.
type ProviderStatus string

const (
	ProviderAccepted    ProviderStatus = "accepted"
	ProviderQueued      ProviderStatus = "queued"
	ProviderSending     ProviderStatus = "sending"
	ProviderSent        ProviderStatus = "sent"
	ProviderDelivered   ProviderStatus = "delivered"
	ProviderFailed      ProviderStatus = "failed"
	ProviderUndelivered ProviderStatus = "undelivered"
	ProviderRead        ProviderStatus = "read"
	ProviderUnknown     ProviderStatus = "unknown"
)

// ParseProviderStatus maps a raw provider status onto the known set.
func ParseProviderStatus(raw string) ProviderStatus {
	switch s := ProviderStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case ProviderAccepted, ProviderQueued, ProviderSending, ProviderSent,
		ProviderDelivered, ProviderFailed, ProviderUndelivered, ProviderRead:
		return s
	default:
		return ProviderUnknown
	}
}

// SendRequest sends a plain text WhatsApp message.
type SendRequest struct {
	Phone   string `json:"phone_number" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendTemplateRequest sends a locally rendered template. Parameters may be
// positional, named, or both.
type SendTemplateRequest struct {
	Phone        string            `json:"phone_number" validate:"required"`
	TemplateName string            `json:"template_name" validate:"required"`
	Parameters   []string          `json:"parameters,omitempty"`
	Named        map[string]string `json:"named_parameters,omitempty"`
}

// SendResponse reports the outcome of an outbound send.
type SendResponse struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"whatsapp_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// StatusResponse reports the delivery state of an outbound message.
type StatusResponse struct {
	Success bool           `json:"success"`
	Status  ProviderStatus `json:"status"`
}
