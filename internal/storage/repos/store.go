package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"kbservice/internal/kbs"
)

// Store is the SQLite kbs.Storer.
type Store struct {
	DB  *sql.DB
	log *slog.Logger
}

var _ kbs.Storer = (*Store)(nil)

func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{DB: db, log: logger.With("component", "sqlite")}
}

func (s *Store) queryErr(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, "sqlite query failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", kbs.ErrStorageQuery, op, err)
}

func (s *Store) writeErr(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, "sqlite write failed", "op", op, "error", err)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s: %w: %w", kbs.ErrStorageWrite, op, kbs.ErrDuplicateKB, err)
	}
	return fmt.Errorf("%w: %s: %w", kbs.ErrStorageWrite, op, err)
}

// isUniqueViolation reports a UNIQUE index conflict. Primary key conflicts are a different code.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// sqlLimit maps the "0 is unbounded" page limit onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit == 0 {
		return -1
	}
	return limit
}
