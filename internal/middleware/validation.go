package middleware

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a request DTO against its `validate` tags and returns an
// apperr.KindInvalidPayload error listing the failing fields.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindInvalidPayload, err, "invalid request")
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s (%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return apperr.InvalidPayload("invalid fields: %s", strings.Join(fields, ", "))
}

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.InvalidPayload("content cannot be empty")
	}
	if len(content) > 4096 { // WhatsApp body limit
		return apperr.InvalidPayload("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return apperr.InvalidPayload("content must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a resource ID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.InvalidPayload("invalid ID format")
	}
	return nil
}
