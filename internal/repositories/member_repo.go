package repositories

import (
	"context"
	"fmt"
	"strings"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MemberRepository reads and edits users on behalf of an authenticated
// caller. Every statement goes through the tenant executor, so rows outside
// the caller's club are invisible to it.
type MemberRepository interface {
	List(ctx context.Context, tc *common.TenantContext, clubID *uuid.UUID, limit, offset int) ([]*models.User, error)
	GetByID(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, tc *common.TenantContext, id uuid.UUID, update models.ProfileUpdate) (*models.User, error)
	Delete(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error
}

type memberRepo struct {
	db *database.TenantExecutor
}

func NewMemberRepo(db *database.TenantExecutor) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) List(ctx context.Context, tc *common.TenantContext, clubID *uuid.UUID, limit, offset int) ([]*models.User, error) {
	return database.TenantQuery(ctx, r.db, tc, func(ctx context.Context, tx pgx.Tx) ([]*models.User, error) {
		query := `SELECT ` + userColumns + ` FROM users`
		args := []any{limit, offset}
		if clubID != nil {
			query += ` WHERE club_id = $3`
			args = append(args, *clubID)
		}
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		defer rows.Close()

		var users []*models.User
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan user: %w", err)
			}
			users = append(users, user)
		}
		return users, rows.Err()
	})
}

func (r *memberRepo) GetByID(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.User, error) {
	return database.TenantQuery(ctx, r.db, tc, func(ctx context.Context, tx pgx.Tx) (*models.User, error) {
		user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		return user, nil
	})
}

func (r *memberRepo) UpdateProfile(ctx context.Context, tc *common.TenantContext, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	sets := []string{}
	args := []any{id}
	if update.FirstName != nil {
		args = append(args, strings.TrimSpace(*update.FirstName))
		sets = append(sets, fmt.Sprintf("first_name = $%d", len(args)))
	}
	if update.LastName != nil {
		args = append(args, strings.TrimSpace(*update.LastName))
		sets = append(sets, fmt.Sprintf("last_name = $%d", len(args)))
	}
	if update.Phone != nil {
		args = append(args, strings.TrimSpace(*update.Phone))
		sets = append(sets, fmt.Sprintf("phone = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, tc, id)
	}
	sets = append(sets, "updated_at = NOW()")

	return database.TenantQuery(ctx, r.db, tc, func(ctx context.Context, tx pgx.Tx) (*models.User, error) {
		query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
		user, err := scanUser(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return user, nil
	})
}

func (r *memberRepo) Delete(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error {
	return r.db.InTx(ctx, tc, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}
