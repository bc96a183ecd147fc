package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"identity-service/internal/dbx"
	"identity-service/internal/domain"
	"identity-service/internal/repository"
)

const accountColumns = `id, email, username, password_hash, active, created_at, updated_at`

type AccountRepository struct {
	q       dbx.DBTX
	dialect Dialect
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.q.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		account.ID,
		account.Email,
		account.Username,
		account.PasswordHash,
		account.Active,
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	)
	if err != nil {
		if dup := classifyUnique(err); dup != nil {
			return dup
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("account_id", account.ID).
			Wrap(err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getBy(ctx, "email", email)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.getBy(ctx, "username", username)
}

// getBy looks an account up by one of its unique columns. column is never user input.
func (r *AccountRepository) getBy(ctx context.Context, column, value string) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+accountColumns+`
FROM accounts
WHERE `+column+` = ?`),
		value,
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "select account").
			With("by", column).
			Wrap(err)
	}
	return account, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	res, err := r.q.ExecContext(ctx, r.dialect.rebind(`
UPDATE accounts
SET password_hash = ?, updated_at = ?
WHERE id = ?`),
		passwordHash,
		updatedAt.UTC(),
		id,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update account password").
			With("account_id", id).
			Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
