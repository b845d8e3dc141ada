package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("INGEST_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.IngestTimeout)
	assert.Equal(t, 8, cfg.PhoneMinDigits)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "true")
	t.Setenv("INGEST_TIMEOUT", "3s")
	t.Setenv("PHONE_MIN_DIGITS", "10")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "AC123", cfg.TwilioAccountSID)
	assert.True(t, cfg.TwilioValidateSignature)
	assert.Equal(t, 3*time.Second, cfg.IngestTimeout)
	assert.Equal(t, 10, cfg.PhoneMinDigits)
	assert.Equal(t, 120, cfg.RateLimitRequests)
}

func TestLoadTemplates(t *testing.T) {
	t.Setenv("WHATSAPP_TEMPLATES", `{"welcome":"Hola {name}","ready":"Pedido {0} listo"}`)
	cfg := Load()
	assert.Equal(t, map[string]string{"welcome": "Hola {name}", "ready": "Pedido {0} listo"}, cfg.WhatsAppTemplates)

	t.Setenv("WHATSAPP_TEMPLATES", "{broken")
	assert.Empty(t, Load().WhatsAppTemplates)
}
