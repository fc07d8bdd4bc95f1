package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool used by the repositories.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrCode(err) == pgUniqueViolation
}

func isLockTimeout(err error) bool {
	return pgErrCode(err) == pgLockNotAvailable
}

// wrapErr annotates err with op and maps constraint and lock errors to port sentinels.
func wrapErr(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ports.ErrConflict, err)
	case isLockTimeout(err):
		return fmt.Errorf("%s: %w: %w", op, ports.ErrLockTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
