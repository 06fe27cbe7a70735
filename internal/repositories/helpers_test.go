package repositories

import "github.com/jackc/pgx/v5/pgconn"

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}
