package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AuditLogsRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListByClub(ctx context.Context, tc *common.TenantContext, clubID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error)
}

// Inserts use the system executor. Reads are filtered by the audit_events
// policy.
type auditLogsRepo struct {
	db     *database.SystemExecutor
	tenant *database.TenantExecutor
}

func NewAuditLogsRepo(db *database.SystemExecutor, tenant *database.TenantExecutor) AuditLogsRepository {
	return &auditLogsRepo{db: db, tenant: tenant}
}

func (r *auditLogsRepo) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	detail := []byte("{}")
	if len(event.Detail) > 0 {
		b, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
		detail = b
	}

	return r.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO audit_events (id, action, actor_user_id, actor_club_id, target_user_id, target_club_id, detail, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := tx.Exec(ctx, query, event.ID, event.Action, event.ActorUserID, event.ActorClubID,
			event.TargetUserID, event.TargetClubID, detail, event.OccurredAt)
		if err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
		return nil
	})
}

// ListByClub returns events where the club is either the actor's or the
// target, as far as the caller's policy lets it see.
func (r *auditLogsRepo) ListByClub(ctx context.Context, tc *common.TenantContext, clubID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	return database.TenantQuery(ctx, r.tenant, tc, func(ctx context.Context, tx pgx.Tx) ([]*models.AuditEvent, error) {
		query := `
			SELECT id, action, actor_user_id, actor_club_id, target_user_id, target_club_id, detail, occurred_at
			FROM audit_events
			WHERE actor_club_id = $1 OR target_club_id = $1
			ORDER BY occurred_at DESC
			LIMIT $2 OFFSET $3`
		rows, err := tx.Query(ctx, query, clubID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list audit events: %w", err)
		}
		defer rows.Close()

		var events []*models.AuditEvent
		for rows.Next() {
			event := &models.AuditEvent{}
			var detail []byte
			if err := rows.Scan(&event.ID, &event.Action, &event.ActorUserID, &event.ActorClubID,
				&event.TargetUserID, &event.TargetClubID, &detail, &event.OccurredAt); err != nil {
				return nil, fmt.Errorf("failed to scan audit event: %w", err)
			}
			if len(detail) > 0 {
				if err := json.Unmarshal(detail, &event.Detail); err != nil {
					return nil, fmt.Errorf("failed to decode audit detail: %w", err)
				}
			}
			events = append(events, event)
		}
		return events, rows.Err()
	})
}
