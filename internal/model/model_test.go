package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestParseProviderStatus(t *testing.T) {
	tests := map[string]ProviderStatus{
		"delivered":   ProviderDelivered,
		" Queued ":    ProviderQueued,
		"READ":        ProviderRead,
		"undelivered": ProviderUndelivered,
		"":            ProviderUnknown,
		"receiving":   ProviderUnknown,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseProviderStatus(raw), raw)
	}
}

func TestInboundEvent(t *testing.T) {
	tests := []struct {
		name    string
		ev      InboundEvent
		typ     MessageType
		content string
	}{
		{"text", InboundEvent{Body: "Hola"}, MessageText, "Hola"},
		{"image with caption", InboundEvent{Body: "mira", NumMedia: 1, MediaURL: "https://m/1", MediaType: "image/png"}, MessageImage, "mira"},
		{"audio without caption", InboundEvent{NumMedia: 1, MediaURL: "https://m/2", MediaType: "audio/ogg"}, MessageAudio, "https://m/2"},
		{"video", InboundEvent{NumMedia: 1, MediaURL: "https://m/3", MediaType: "Video/MP4"}, MessageVideo, "https://m/3"},
		{"pdf", InboundEvent{NumMedia: 1, MediaURL: "https://m/4", MediaType: "application/pdf"}, MessageDocument, "https://m/4"},
		{"media count without url", InboundEvent{NumMedia: 1}, MessageText, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.ev.MessageType())
			assert.Equal(t, tt.content, tt.ev.Content())
		})
	}
}

func TestRoleAllows(t *testing.T) {
	role := &Role{
		Name:   "Agente",
		Active: true,
		Permissions: datatypes.NewJSONType(Permissions{
			"whatsapp": {"send": true, "receive": true},
			"users":    {"read": false},
		}),
	}

	assert.True(t, role.Allows("whatsapp", "send"))
	assert.False(t, role.Allows("users", "read"))
	assert.False(t, role.Allows("reports", "read"))

	role.Active = false
	assert.False(t, role.Allows("whatsapp", "send"))

	var none *Role
	assert.False(t, none.Allows("whatsapp", "send"))
}

func TestConversationStatus(t *testing.T) {
	assert.True(t, StatusPaused.Valid())
	assert.False(t, ConversationStatus("archived").Valid())
	assert.True(t, StatusPaused.Open())
	assert.False(t, StatusResolved.Open())
}
