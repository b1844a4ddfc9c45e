package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sunvolt/loginguard/internal/models"
)

// Postgres error codes the repositories care about
const (
	codeUniqueViolation  = "23505"
	codeForeignKey       = "23503"
	codeNotNull          = "23502"
	codeCheckViolation   = "23514"
	codeInvalidTextInput = "22P02" // malformed uuid from a client-supplied id
)

// MapPostgresError turns driver errors into model sentinels. Anything it does
// not recognise is returned unchanged and treated as a transport failure by
// the caller.
func MapPostgresError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return models.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return models.ErrConflict
	case codeForeignKey, codeNotNull, codeCheckViolation, codeInvalidTextInput:
		return models.ErrBadRequest
	default:
		return err
	}
}
