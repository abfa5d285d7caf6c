// Package repositories provides the PostgreSQL implementations of the
// domain repository interfaces.
package repositories

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique constraint
// violation, used to translate races into domain conflict errors.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// nullableTime converts a *time.Time for query parameters; pgx maps a
// nil interface value to SQL NULL.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
