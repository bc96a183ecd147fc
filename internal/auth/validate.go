package auth

import (
	"regexp"
	"unicode/utf8"

	"identity-service/internal/domain"
)

// Password length bounds. The minimum counts characters; the maximum counts
// bytes because bcrypt refuses inputs longer than 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail checks the local@domain.tld shape of email.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return domain.ErrWeakPassword
	case len(password) > MaxPasswordBytes:
		return domain.ErrWeakPassword.WithMessage("password must be at most 72 bytes")
	}
	return nil
}
