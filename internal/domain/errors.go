package domain

import (
	"errors"
	"net/http"
)

// ErrorKind enumerates the failures the service reports to callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidEmail
	KindWeakPassword
	KindInvalidRequest
	KindEmailTaken
	KindUsernameTaken
	KindInvalidCredentials
	KindExpiredToken
	KindInvalidToken
	KindUnauthorized
	KindUserNotFound
	KindInvalidResetToken
	KindResetTokenExpired
	KindDatabase
	KindStorageUnavailable
)

// Error is a typed failure with a stable code and an HTTP-equivalent status.
// The wrapped cause, if any, is for logs only and never shown to clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches errors of the same kind so wrapped copies compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithMessage returns a copy of e with a more specific client-facing message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

func newError(kind ErrorKind, code string, status int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: msg}
}

var (
	ErrInvalidEmail       = newError(KindInvalidEmail, "INVALID_EMAIL", http.StatusBadRequest, "invalid email format")
	ErrWeakPassword       = newError(KindWeakPassword, "WEAK_PASSWORD", http.StatusBadRequest, "password must be at least 8 characters")
	ErrInvalidRequest     = newError(KindInvalidRequest, "INVALID_REQUEST", http.StatusBadRequest, "invalid request")
	ErrEmailTaken         = newError(KindEmailTaken, "EMAIL_TAKEN", http.StatusConflict, "email already registered")
	ErrUsernameTaken      = newError(KindUsernameTaken, "USERNAME_TAKEN", http.StatusConflict, "username already taken")
	ErrInvalidCredentials = newError(KindInvalidCredentials, "INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrExpiredToken       = newError(KindExpiredToken, "TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrInvalidToken       = newError(KindInvalidToken, "INVALID_TOKEN", http.StatusUnauthorized, "invalid token")
	ErrUnauthorized       = newError(KindUnauthorized, "UNAUTHORIZED", http.StatusForbidden, "access denied")
	ErrUserNotFound       = newError(KindUserNotFound, "USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrInvalidResetToken  = newError(KindInvalidResetToken, "INVALID_RESET_TOKEN", http.StatusBadRequest, "invalid or expired reset token")
	ErrResetTokenExpired  = newError(KindResetTokenExpired, "RESET_TOKEN_EXPIRED", http.StatusBadRequest, "reset token has expired")
	ErrDatabase           = newError(KindDatabase, "DATABASE_ERROR", http.StatusInternalServerError, "database error")
	ErrInternal           = newError(KindInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrStorageUnavailable = newError(KindStorageUnavailable, "STORAGE_UNAVAILABLE", http.StatusServiceUnavailable, "avatar storage is not configured")
)

// AsError extracts the domain error from err. Anything else is reported as
// ErrInternal wrapping the original error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal.Wrap(err)
}
