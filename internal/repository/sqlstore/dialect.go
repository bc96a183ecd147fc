package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"identity-service/internal/repository"
)

// Dialect selects the SQL flavour spoken by the underlying driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a configured driver name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case DialectSQLite, DialectPostgres:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unique constraint names shared by both schemas.
const (
	emailConstraint    = "accounts_email_key"
	usernameConstraint = "accounts_username_key"
)

// classifyUnique maps a unique-constraint violation to the matching
// repository sentinel. It returns nil for any other error.
func classifyUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgerrcode.UniqueViolation {
			return nil
		}
		switch pgErr.ConstraintName {
		case emailConstraint:
			return repository.ErrDuplicateEmail
		case usernameConstraint:
			return repository.ErrDuplicateUsername
		}
		return nil
	}

	// modernc reports "UNIQUE constraint failed: accounts.email (2067)".
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "accounts.email"):
		return repository.ErrDuplicateEmail
	case strings.Contains(msg, "accounts.username"):
		return repository.ErrDuplicateUsername
	}
	return nil
}
