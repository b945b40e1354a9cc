package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email is blank
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates the email does not look like local@domain.tld
	ErrInvalidEmail = errors.New("email format is invalid")

	// ErrInvalidPhone indicates the phone has too few or too many digits
	ErrInvalidPhone = errors.New("phone number must have between 8 and 15 digits")
)

// emailRegex is deliberately loose; the shop API does the authoritative check
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ContactValidator normalizes customer contact data before it leaves the wizard
type ContactValidator struct{}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{}
}

// NormalizeEmail trims and lower-cases an email
func (v *ContactValidator) NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail returns the normalized email or an error
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	normalized := v.NormalizeEmail(email)
	if normalized == "" {
		return "", ErrEmptyEmail
	}
	if !emailRegex.MatchString(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// SanitizePhone keeps digits and a single leading '+'
// Accepts: +54 9 11 1234-5678, (011) 1234.5678, ...
func (v *ContactValidator) SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone returns the sanitized phone or an error
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	sanitized := v.SanitizePhone(phone)
	digits := strings.TrimPrefix(sanitized, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return sanitized, nil
}
