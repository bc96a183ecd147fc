package repository

import "context"

// Store groups the repositories over one connection or transaction.
type Store interface {
	Accounts() AccountRepository
	Profiles() ProfileRepository
	Preferences() PreferencesRepository
	ResetTickets() ResetTicketRepository

	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Ping(ctx context.Context) error
}
