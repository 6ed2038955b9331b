package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"fieldledger/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes handled explicitly.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// MapError converts PostgreSQL errors that callers react to into AppErrors.
// Errors that already carry an AppError, and all other errors, are returned
// unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return apperror.NewConcurrentModification(pgErr.TableName, pgErr.ConstraintName).
			WithDetail("sqlstate", pgErr.Code).
			WithCause(err)
	case pgUniqueViolation:
		return apperror.NewDuplicate(pgErr.TableName, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
	}
	return err
}
