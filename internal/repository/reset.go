package repository

import (
	"context"
	"time"

	"identity-service/internal/domain"
)

// ResetTicketRepository persists password reset tickets.
type ResetTicketRepository interface {
	Create(ctx context.Context, ticket *domain.ResetTicket) error
	// GetActive returns the ticket with id when it expires after now, or ErrNotFound.
	GetActive(ctx context.Context, id string, now time.Time) (*domain.ResetTicket, error)
	// Consume deletes the ticket and reports whether this call removed it.
	Consume(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
