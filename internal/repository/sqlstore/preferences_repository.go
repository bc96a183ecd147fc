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

const preferencesColumns = `account_id, notifications, language, theme, created_at, updated_at`

type PreferencesRepository struct {
	q       dbx.DBTX
	dialect Dialect
}

func (r *PreferencesRepository) Create(ctx context.Context, prefs *domain.Preferences) error {
	_, err := r.q.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO preferences (`+preferencesColumns+`)
VALUES (?, ?, ?, ?, ?, ?)`),
		prefs.AccountID,
		prefs.Notifications,
		prefs.Language,
		prefs.Theme,
		prefs.CreatedAt.UTC(),
		prefs.UpdatedAt.UTC(),
	)
	if err != nil {
		return oops.Code("PREFERENCES_CREATE_FAILED").
			With("operation", "insert preferences").
			With("account_id", prefs.AccountID).
			Wrap(err)
	}
	return nil
}

func (r *PreferencesRepository) GetByAccount(ctx context.Context, accountID string) (*domain.Preferences, error) {
	row := r.q.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+preferencesColumns+`
FROM preferences
WHERE account_id = ?`),
		accountID,
	)
	prefs, err := scanPreferences(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, oops.Code("PREFERENCES_GET_FAILED").
			With("operation", "select preferences").
			With("account_id", accountID).
			Wrap(err)
	}
	return prefs, nil
}

func (r *PreferencesRepository) Update(ctx context.Context, accountID string, upd domain.PreferencesUpdate, updatedAt time.Time) (*domain.Preferences, error) {
	var set setClause
	if upd.Notifications != nil {
		set.add("notifications", *upd.Notifications)
	}
	if upd.Language != nil {
		set.add("language", *upd.Language)
	}
	if upd.Theme != nil {
		set.add("theme", *upd.Theme)
	}
	set.add("updated_at", updatedAt.UTC())

	row := r.q.QueryRowContext(ctx, r.dialect.rebind(`
UPDATE preferences
SET `+set.String()+`
WHERE account_id = ?
RETURNING `+preferencesColumns),
		append(set.args, accountID)...,
	)
	prefs, err := scanPreferences(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, oops.Code("PREFERENCES_UPDATE_FAILED").
			With("operation", "update preferences").
			With("account_id", accountID).
			With("columns", set.columns).
			Wrap(err)
	}
	return prefs, nil
}

func scanPreferences(row rowScanner) (*domain.Preferences, error) {
	var prefs domain.Preferences
	if err := row.Scan(
		&prefs.AccountID,
		&prefs.Notifications,
		&prefs.Language,
		&prefs.Theme,
		&prefs.CreatedAt,
		&prefs.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &prefs, nil
}

var _ repository.PreferencesRepository = (*PreferencesRepository)(nil)
