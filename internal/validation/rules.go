// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/pgquerytool/credvault/internal/errors"
)

// maxProfileIDLength bounds identifiers so sanitized key names stay well under
// platform secret-store name limits.
const maxProfileIDLength = 128

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// ProfileID validates a caller-supplied profile identifier.
func ProfileID(id string) error {
	err := validation.Validate(id,
		validation.Required.Error("profile identifier must not be empty"),
		validation.RuneLength(1, maxProfileIDLength).
			Error("profile identifier must be at most 128 characters"),
	)
	return WrapValidationError(err)
}

// SanitizeProfileID maps a profile identifier onto the character set that is
// safe for secret-store key names. Any rune outside [A-Za-z0-9._-] becomes an
// underscore. Identifiers must pass ProfileID first; sanitization never fails.
func SanitizeProfileID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
