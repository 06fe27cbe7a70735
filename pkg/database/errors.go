package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clubhub/internal/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var passthrough = []error{
	common.ErrUnauthenticated,
	common.ErrForbidden,
	common.ErrInvalidToken,
	common.ErrConflict,
	common.ErrInternalInconsistency,
	common.ErrUnavailable,
	common.ErrNotFound,
	common.ErrInternal,
	common.ErrRateLimited,
	common.ErrNoTenantContext,
}

// TranslateError maps driver errors onto the shared taxonomy so that raw
// driver messages never leave the storage layer.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return &common.ConflictError{Constraint: pgErr.ConstraintName}
		case isUnavailableCode(pgErr.Code):
			return fmt.Errorf("%w: sqlstate %s", common.ErrUnavailable, pgErr.Code)
		default:
			return &common.InternalError{Code: pgErr.Code}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: timed out", common.ErrUnavailable)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: connection failed", common.ErrUnavailable)
	}

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	for _, known := range passthrough {
		if errors.Is(err, known) {
			return err
		}
	}

	return common.ErrInternal
}

// Connection exceptions (08), insufficient resources (53), statement
// timeouts (57014), admin shutdown (57P01-57P03) and serialization failures
// are transient.
func isUnavailableCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"):
		return true
	case code == "57014", code == "57P01", code == "57P02", code == "57P03", code == "40001", code == "40P01":
		return true
	}
	return false
}
