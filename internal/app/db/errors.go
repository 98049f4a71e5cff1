package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
)

const sqliteConstraintCode = 19

// IsUniqueViolation checks if err is a unique constraint violation from either backend.
// When column is non-empty, the violated constraint must also concern that column.
func IsUniqueViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return false
		}
		return column == "" || strings.Contains(pgErr.ConstraintName, column)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xff != sqliteConstraintCode {
			return false
		}
		msg := sqliteErr.Error()
		if !strings.Contains(msg, "UNIQUE") {
			return false
		}
		return column == "" || strings.Contains(msg, "."+column)
	}

	return false
}
