package repositories

import (
	"context"
	"fmt"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const clubColumns = `id, name, subdomain, is_active, subscription_tier, subscription_status, primary_contact_id, created_at, updated_at`

type ClubRepository interface {
	CreateWithAdmin(ctx context.Context, club *models.Club, admin *models.User, issue *TokenIssue) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	GetForTenant(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.Club, error)
	List(ctx context.Context, limit, offset int) ([]*models.Club, error)
	DeleteCascade(ctx context.Context, id uuid.UUID) (int64, error)
}

type clubRepo struct {
	system *database.SystemExecutor
	tenant *database.TenantExecutor
}

func NewClubRepo(system *database.SystemExecutor, tenant *database.TenantExecutor) ClubRepository {
	return &clubRepo{system: system, tenant: tenant}
}

func scanClub(row rowScanner) (*models.Club, error) {
	club := &models.Club{}
	err := row.Scan(&club.ID, &club.Name, &club.Subdomain, &club.IsActive, &club.SubscriptionTier,
		&club.SubscriptionStatus, &club.PrimaryContactID, &club.CreatedAt, &club.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return club, nil
}

// CreateWithAdmin inserts the club, its first admin and the admin's first
// token in one transaction, then points the club at its primary contact.
func (r *clubRepo) CreateWithAdmin(ctx context.Context, club *models.Club, admin *models.User, issue *TokenIssue) error {
	return r.system.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO clubs (id, name, subdomain, is_active, subscription_tier, subscription_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			RETURNING created_at, updated_at`
		err := tx.QueryRow(ctx, query, club.ID, club.Name, club.Subdomain, club.IsActive,
			club.SubscriptionTier, club.SubscriptionStatus).Scan(&club.CreatedAt, &club.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create club: %w", err)
		}

		if err := insertUser(ctx, tx, admin, issue); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE clubs SET primary_contact_id = $2 WHERE id = $1`, club.ID, admin.ID); err != nil {
			return fmt.Errorf("failed to set primary contact: %w", err)
		}
		club.PrimaryContactID = &admin.ID
		return nil
	})
}

func (r *clubRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	return database.SystemQuery(ctx, r.system, func(ctx context.Context, tx pgx.Tx) (*models.Club, error) {
		club, err := scanClub(tx.QueryRow(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = $1`, id))
		if err != nil {
			return nil, fmt.Errorf("failed to get club: %w", err)
		}
		return club, nil
	})
}

// GetForTenant reads a club through the tenant executor, so a member of
// another club sees ErrNotFound.
func (r *clubRepo) GetForTenant(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.Club, error) {
	return database.TenantQuery(ctx, r.tenant, tc, func(ctx context.Context, tx pgx.Tx) (*models.Club, error) {
		club, err := scanClub(tx.QueryRow(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = $1`, id))
		if err != nil {
			return nil, fmt.Errorf("failed to get club: %w", err)
		}
		return club, nil
	})
}

func (r *clubRepo) List(ctx context.Context, limit, offset int) ([]*models.Club, error) {
	return database.SystemQuery(ctx, r.system, func(ctx context.Context, tx pgx.Tx) ([]*models.Club, error) {
		rows, err := tx.Query(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list clubs: %w", err)
		}
		defer rows.Close()

		var clubs []*models.Club
		for rows.Next() {
			club, err := scanClub(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan club: %w", err)
			}
			clubs = append(clubs, club)
		}
		return clubs, rows.Err()
	})
}

// DeleteCascade removes the club and every member account in one
// transaction and returns how many users were removed.
func (r *clubRepo) DeleteCascade(ctx context.Context, id uuid.UUID) (int64, error) {
	return database.SystemQuery(ctx, r.system, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, `UPDATE clubs SET primary_contact_id = NULL WHERE id = $1`, id)
		if err != nil {
			return 0, fmt.Errorf("failed to clear primary contact: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return 0, common.ErrNotFound
		}

		tag, err = tx.Exec(ctx, `DELETE FROM users WHERE club_id = $1`, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete club members: %w", err)
		}
		removed := tag.RowsAffected()

		if _, err := tx.Exec(ctx, `DELETE FROM clubs WHERE id = $1`, id); err != nil {
			return 0, fmt.Errorf("failed to delete club: %w", err)
		}
		return removed, nil
	})
}
