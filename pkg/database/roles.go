package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrTenantRoleBypassesRLS is returned when the tenant pool's role would not
// be filtered by the row level security policies.
var ErrTenantRoleBypassesRLS = errors.New("tenant database role bypasses row level security")

// RowQuerier is satisfied by *pgxpool.Pool and by pgxmock pools.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Superusers, BYPASSRLS roles and anyone holding the privileges of the
// owner of users skip non-forced policies.
const tenantRoleSQL = `SELECT r.rolname, r.rolsuper OR r.rolbypassrls OR pg_has_role(r.oid, c.relowner, 'USAGE')
	FROM pg_roles r, pg_class c
	WHERE r.rolname = current_user AND c.oid = 'users'::regclass`

// VerifyTenantRole fails unless the pool connects as a role the policies
// apply to.
func VerifyTenantRole(ctx context.Context, db RowQuerier) error {
	var (
		role     string
		bypasses bool
	)
	if err := db.QueryRow(ctx, tenantRoleSQL).Scan(&role, &bypasses); err != nil {
		return fmt.Errorf("failed to inspect tenant database role: %w", err)
	}
	if bypasses {
		return fmt.Errorf("%w: %s", ErrTenantRoleBypassesRLS, role)
	}
	return nil
}
