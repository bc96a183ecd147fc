package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"

	"identity-service/internal/dbx"
	"identity-service/internal/domain"
	"identity-service/internal/repository"
)

const profileColumns = `account_id, avatar_url, level, experience, wins, losses, created_at, updated_at`

type ProfileRepository struct {
	q       dbx.DBTX
	dialect Dialect
}

func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	_, err := r.q.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO profiles (`+profileColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		profile.AccountID,
		profile.AvatarURL,
		profile.Level,
		profile.Experience,
		profile.Wins,
		profile.Losses,
		profile.CreatedAt.UTC(),
		profile.UpdatedAt.UTC(),
	)
	if err != nil {
		return oops.Code("PROFILE_CREATE_FAILED").
			With("operation", "insert profile").
			With("account_id", profile.AccountID).
			Wrap(err)
	}
	return nil
}

func (r *ProfileRepository) GetByAccount(ctx context.Context, accountID string) (*domain.Profile, error) {
	row := r.q.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+profileColumns+`
FROM profiles
WHERE account_id = ?`),
		accountID,
	)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "select profile").
			With("account_id", accountID).
			Wrap(err)
	}
	return profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, accountID string, upd domain.ProfileUpdate, updatedAt time.Time) (*domain.Profile, error) {
	var set setClause
	if upd.AvatarURL != nil {
		set.add("avatar_url", *upd.AvatarURL)
	}
	if upd.Level != nil {
		set.add("level", *upd.Level)
	}
	if upd.Experience != nil {
		set.add("experience", *upd.Experience)
	}
	if upd.Wins != nil {
		set.add("wins", *upd.Wins)
	}
	if upd.Losses != nil {
		set.add("losses", *upd.Losses)
	}
	set.add("updated_at", updatedAt.UTC())

	row := r.q.QueryRowContext(ctx, r.dialect.rebind(`
UPDATE profiles
SET `+set.String()+`
WHERE account_id = ?
RETURNING `+profileColumns),
		append(set.args, accountID)...,
	)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "update profile").
			With("account_id", accountID).
			With("columns", set.columns).
			Wrap(err)
	}
	return profile, nil
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var profile domain.Profile
	if err := row.Scan(
		&profile.AccountID,
		&profile.AvatarURL,
		&profile.Level,
		&profile.Experience,
		&profile.Wins,
		&profile.Losses,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

// setClause accumulates the column assignments of a partial UPDATE.
type setClause struct {
	columns []string
	args    []any
}

func (s *setClause) add(column string, value any) {
	s.columns = append(s.columns, column)
	s.args = append(s.args, value)
}

func (s *setClause) String() string {
	parts := make([]string, len(s.columns))
	for i, c := range s.columns {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, ", ")
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
