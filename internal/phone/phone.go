// Package phone canonicalizes phone numbers exchanged with the WhatsApp
// provider.
//
// The canonical form is "+" followed by digits. Provider channel prefixes
// such as "whatsapp:" are only applied at the dispatch boundary through
// ChannelAddress and are never part of a stored number.
package phone

import (
	"strings"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
)

// DefaultMinDigits is the minimum digit count accepted by Normalize.
const DefaultMinDigits = 8

// Normalizer canonicalizes phone numbers with a configured minimum length.
type Normalizer struct {
	MinDigits int
}

// NewNormalizer returns a normalizer; a non-positive minimum falls back to
// DefaultMinDigits.
func NewNormalizer(minDigits int) Normalizer {
	if minDigits <= 0 {
		minDigits = DefaultMinDigits
	}
	return Normalizer{MinDigits: minDigits}
}

// Normalize returns the canonical form of raw.
func (n Normalizer) Normalize(raw string) (string, error) {
	s := StripChannel(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s) + 1)
	b.WriteByte('+')
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}

	min := n.MinDigits
	if min <= 0 {
		min = DefaultMinDigits
	}
	if digits < min {
		return "", apperr.New(apperr.KindInvalidPhone, "phone %q has %d digits, need at least %d", raw, digits, min)
	}
	return b.String(), nil
}

// Normalize canonicalizes raw with DefaultMinDigits.
func Normalize(raw string) (string, error) {
	return Normalizer{MinDigits: DefaultMinDigits}.Normalize(raw)
}

// StripChannel removes a provider channel prefix ("whatsapp:+34...").
func StripChannel(s string) string {
	if i := strings.IndexByte(s, ':'); i > 0 {
		return s[i+1:]
	}
	return s
}

// ChannelAddress wraps a canonical number into the provider's
// channel-prefixed address form.
func ChannelAddress(channel, canonical string) string {
	if channel == "" {
		return canonical
	}
	return channel + ":" + canonical
}
