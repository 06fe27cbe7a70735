package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, role, club_id, is_active, email_verified, invitation_status, first_name, last_name, phone, last_login_at, created_at, updated_at`

type tokenColumnPair struct {
	hash    string
	expires string
}

// tokenColumns is the only source of token column names used in SQL.
var tokenColumns = map[models.TokenKind]tokenColumnPair{
	models.TokenInvite:            {"invite_token_hash", "invite_token_expires_at"},
	models.TokenEmailVerification: {"email_verification_token_hash", "email_verification_token_expires_at"},
	models.TokenSetPassword:       {"set_password_token_hash", "set_password_token_expires_at"},
	models.TokenPasswordReset:     {"password_reset_token_hash", "password_reset_token_expires_at"},
}

func columnsFor(kind models.TokenKind) (tokenColumnPair, error) {
	cols, ok := tokenColumns[kind]
	if !ok {
		return tokenColumnPair{}, fmt.Errorf("unknown token kind %q", kind)
	}
	return cols, nil
}

// TokenIssue is the stored half of a newly issued token.
type TokenIssue struct {
	Kind      models.TokenKind
	Hash      string
	ExpiresAt time.Time
}

// TokenConsumption describes how to redeem one token and what the user row
// becomes once it is redeemed. Verify runs while the row is locked.
// RequireActive refuses to redeem for a deactivated account and leaves the
// row untouched.
type TokenConsumption struct {
	Kind             models.TokenKind
	Verify           func(slot models.TokenSlot) bool
	RequireActive    bool
	PasswordHash     *string
	FirstName        *string
	LastName         *string
	Activate         bool
	AcceptInvitation bool
	VerifyEmail      bool
}

// UserRepository reaches users without a tenant identity. It is used by the
// credential flows, the identity resolver and platform jobs.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User, issue *TokenIssue) error
	SetToken(ctx context.Context, userID uuid.UUID, issue TokenIssue) error
	ConsumeToken(ctx context.Context, userID uuid.UUID, c TokenConsumption) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type userRepo struct {
	db *database.SystemExecutor
}

func NewUserRepo(db *database.SystemExecutor) UserRepository {
	return &userRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.ClubID, &user.IsActive,
		&user.EmailVerified, &user.InvitationStatus, &user.FirstName, &user.LastName, &user.Phone,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return database.SystemQuery(ctx, r.db, func(ctx context.Context, tx pgx.Tx) (*models.User, error) {
		query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
		user, err := scanUser(tx.QueryRow(ctx, query, id))
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		return user, nil
	})
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return database.SystemQuery(ctx, r.db, func(ctx context.Context, tx pgx.Tx) (*models.User, error) {
		query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
		user, err := scanUser(tx.QueryRow(ctx, query, strings.ToLower(email)))
		if err != nil {
			return nil, fmt.Errorf("failed to get user by email: %w", err)
		}
		return user, nil
	})
}

func (r *userRepo) Create(ctx context.Context, user *models.User, issue *TokenIssue) error {
	return r.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return insertUser(ctx, tx, user, issue)
	})
}

// insertUser writes user and, when issue is set, its first token.
func insertUser(ctx context.Context, tx pgx.Tx, user *models.User, issue *TokenIssue) error {
	columns := `id, email, password_hash, role, club_id, is_active, email_verified, invitation_status, first_name, last_name, phone`
	placeholders := `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11`
	args := []any{user.ID, strings.ToLower(user.Email), user.PasswordHash, user.Role, user.ClubID, user.IsActive,
		user.EmailVerified, user.InvitationStatus, user.FirstName, user.LastName, user.Phone}

	if issue != nil {
		cols, err := columnsFor(issue.Kind)
		if err != nil {
			return err
		}
		columns += ", " + cols.hash + ", " + cols.expires
		placeholders += ", $12, $13"
		args = append(args, issue.Hash, issue.ExpiresAt)
	}

	query := `INSERT INTO users (` + columns + `, created_at, updated_at) VALUES (` + placeholders + `, NOW(), NOW()) RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SetToken stores a new token for the class, replacing any outstanding one.
func (r *userRepo) SetToken(ctx context.Context, userID uuid.UUID, issue TokenIssue) error {
	cols, err := columnsFor(issue.Kind)
	if err != nil {
		return err
	}
	return r.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `UPDATE users SET ` + cols.hash + ` = $2, ` + cols.expires + ` = $3, updated_at = NOW() WHERE id = $1`
		tag, err := tx.Exec(ctx, query, userID, issue.Hash, issue.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

// ConsumeToken redeems a token exactly once. The slot is read under a row
// lock and the update is guarded on the hash that was read, so of two
// concurrent redemptions only one can succeed. Every failure is
// ErrInvalidToken.
func (r *userRepo) ConsumeToken(ctx context.Context, userID uuid.UUID, c TokenConsumption) (*models.User, error) {
	cols, err := columnsFor(c.Kind)
	if err != nil {
		return nil, err
	}
	if c.Verify == nil {
		return nil, errors.New("token consumption requires a verifier")
	}

	return database.SystemQuery(ctx, r.db, func(ctx context.Context, tx pgx.Tx) (*models.User, error) {
		var slot models.TokenSlot
		var active bool
		lockQuery := `SELECT ` + cols.hash + `, ` + cols.expires + `, is_active FROM users WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRow(ctx, lockQuery, userID).Scan(&slot.Hash, &slot.ExpiresAt, &active); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, common.ErrInvalidToken
			}
			return nil, fmt.Errorf("failed to lock token: %w", err)
		}
		if slot.IsEmpty() || !c.Verify(slot) {
			return nil, common.ErrInvalidToken
		}
		if c.RequireActive && !active {
			return nil, common.ErrForbidden
		}

		query, args := c.updateSQL(cols, userID, *slot.Hash)
		user, err := scanUser(tx.QueryRow(ctx, query, args...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, common.ErrInvalidToken
			}
			return nil, fmt.Errorf("failed to consume token: %w", err)
		}
		return user, nil
	})
}

func (c TokenConsumption) updateSQL(cols tokenColumnPair, userID uuid.UUID, readHash string) (string, []any) {
	sets := []string{cols.hash + " = NULL", cols.expires + " = NULL"}
	args := []any{userID, readHash}

	if c.PasswordHash != nil {
		args = append(args, *c.PasswordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if c.FirstName != nil {
		args = append(args, *c.FirstName)
		sets = append(sets, fmt.Sprintf("first_name = $%d", len(args)))
	}
	if c.LastName != nil {
		args = append(args, *c.LastName)
		sets = append(sets, fmt.Sprintf("last_name = $%d", len(args)))
	}
	if c.Activate {
		sets = append(sets, "is_active = TRUE")
	}
	if c.AcceptInvitation {
		sets = append(sets, "invitation_status = CASE WHEN invitation_status = 'PENDING' THEN 'ACCEPTED' ELSE invitation_status END")
	}
	if c.VerifyEmail {
		sets = append(sets, "email_verified = TRUE")
	}
	sets = append(sets, "updated_at = NOW()")

	where := ` WHERE id = $1 AND ` + cols.hash + ` = $2`
	if c.RequireActive {
		where += ` AND is_active`
	}
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + where + ` RETURNING ` + userColumns
	return query, args
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
		if err != nil {
			return fmt.Errorf("failed to update last login: %w", err)
		}
		return nil
	})
}

// ClearExpiredTokens nulls every token slot whose expiry has passed.
func (r *userRepo) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64
	err := r.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, kind := range models.AllTokenKinds() {
			cols := tokenColumns[kind]
			query := `UPDATE users SET ` + cols.hash + ` = NULL, ` + cols.expires + ` = NULL WHERE ` + cols.expires + ` <= $1`
			tag, err := tx.Exec(ctx, query, now)
			if err != nil {
				return fmt.Errorf("failed to clear expired %s tokens: %w", kind, err)
			}
			cleared += tag.RowsAffected()
		}
		return nil
	})
	return cleared, err
}
