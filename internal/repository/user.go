// Package repository declares the persistence contracts of the identity service.
package repository

import (
	"context"
	"errors"
	"time"

	"identity-service/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when an insert violates the unique email constraint.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateUsername is returned when an insert violates the unique username constraint.
	ErrDuplicateUsername = errors.New("username already exists")
)

// AccountRepository persists Account records.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// ProfileRepository persists the Profile owned by each account.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByAccount(ctx context.Context, accountID string) (*domain.Profile, error)
	// Update writes the fields present in upd, stamps updated_at and returns the stored row.
	Update(ctx context.Context, accountID string, upd domain.ProfileUpdate, updatedAt time.Time) (*domain.Profile, error)
}

// PreferencesRepository persists the Preferences owned by each account.
type PreferencesRepository interface {
	Create(ctx context.Context, prefs *domain.Preferences) error
	GetByAccount(ctx context.Context, accountID string) (*domain.Preferences, error)
	Update(ctx context.Context, accountID string, upd domain.PreferencesUpdate, updatedAt time.Time) (*domain.Preferences, error)
}
