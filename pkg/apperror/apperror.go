// Package apperror defines the error taxonomy exposed by the domain layer.
// Store errors are wrapped at the repository boundary so raw driver errors
// never reach handlers.
package apperror

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound covers absent, disabled, and foreign-owned entities alike.
	// Callers cannot distinguish the three; that is deliberate tenant isolation.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is a caller contract violation (bad radius, page size,
	// coordinate) detected before any query runs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable is a retryable resource failure: pool exhaustion or a
	// store timeout.
	ErrUnavailable = errors.New("resource unavailable")

	// ErrInvariant marks a write that affected an impossible number of rows.
	// It is a programmer error and must never be retried or swallowed.
	ErrInvariant = errors.New("invariant violation")
)

// NotFoundf wraps ErrNotFound with the entity name only, never the id that
// failed.
func NotFoundf(entity string) error {
	return fmt.Errorf("%s: %w", entity, ErrNotFound)
}

// Invalidf wraps ErrInvalidArgument with a caller-facing reason.
func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

// FromStore translates a pgx error into the taxonomy. A nil error stays nil;
// anything unrecognized is returned as-is for the handler to treat as internal.
func FromStore(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFoundf(entity)
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w", entity, ErrUnavailable)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 53xxx: insufficient resources (connections, memory, disk).
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "53" {
			return fmt.Errorf("%s: %w", entity, ErrUnavailable)
		}
	}
	return err
}

// CheckAffected enforces the single-row contract of conditional updates:
// zero rows means the target is gone, disabled or not owned by the caller;
// more than one row means the filter was wrong and the write is a defect.
func CheckAffected(affected int64, entity string) error {
	switch {
	case affected == 1:
		return nil
	case affected == 0:
		return NotFoundf(entity)
	default:
		return fmt.Errorf("%s update affected %d rows: %w", entity, affected, ErrInvariant)
	}
}
