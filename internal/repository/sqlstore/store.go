// Package sqlstore implements the repository contracts over database/sql for
// SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"

	"identity-service/internal/dbx"
	"identity-service/internal/repository"
)

// Store binds repositories to a pool or, inside WithinTx, to a transaction.
type Store struct {
	db      *sql.DB
	q       dbx.DBTX
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, q: db, dialect: dialect}
}

func (s *Store) Accounts() repository.AccountRepository {
	return &AccountRepository{q: s.q, dialect: s.dialect}
}

func (s *Store) Profiles() repository.ProfileRepository {
	return &ProfileRepository{q: s.q, dialect: s.dialect}
}

func (s *Store) Preferences() repository.PreferencesRepository {
	return &PreferencesRepository{q: s.q, dialect: s.dialect}
}

func (s *Store) ResetTickets() repository.ResetTicketRepository {
	return &ResetTicketRepository{q: s.q, dialect: s.dialect}
}

// WithinTx runs fn in a new transaction. Calls made on a transactional Store
// join the enclosing transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &Store{q: tx, dialect: s.dialect})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

var _ repository.Store = (*Store)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}
