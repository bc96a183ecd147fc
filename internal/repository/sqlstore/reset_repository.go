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

const resetTicketColumns = `id, account_id, secret_hash, expires_at, created_at`

type ResetTicketRepository struct {
	q       dbx.DBTX
	dialect Dialect
}

func (r *ResetTicketRepository) Create(ctx context.Context, ticket *domain.ResetTicket) error {
	_, err := r.q.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO reset_tickets (`+resetTicketColumns+`)
VALUES (?, ?, ?, ?, ?)`),
		ticket.ID,
		ticket.AccountID,
		ticket.SecretHash,
		ticket.ExpiresAt.UTC(),
		ticket.CreatedAt.UTC(),
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset ticket").
			With("account_id", ticket.AccountID).
			Wrap(err)
	}
	return nil
}

func (r *ResetTicketRepository) GetActive(ctx context.Context, id string, now time.Time) (*domain.ResetTicket, error) {
	row := r.q.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+resetTicketColumns+`
FROM reset_tickets
WHERE id = ? AND expires_at > ?`),
		id,
		now.UTC(),
	)
	var t domain.ResetTicket
	if err := row.Scan(&t.ID, &t.AccountID, &t.SecretHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "select active reset ticket").
			With("id", id).
			Wrap(err)
	}
	return &t, nil
}

func (r *ResetTicketRepository) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.rebind(`
DELETE FROM reset_tickets
WHERE id = ?`),
		id,
	)
	if err != nil {
		return false, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "delete reset ticket").
			With("id", id).
			Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	return affected == 1, nil
}

func (r *ResetTicketRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.rebind(`
DELETE FROM reset_tickets
WHERE expires_at <= ?`),
		now.UTC(),
	)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired reset tickets").
			Wrap(err)
	}
	return res.RowsAffected()
}

var _ repository.ResetTicketRepository = (*ResetTicketRepository)(nil)
