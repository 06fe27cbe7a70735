package database

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs TEST_DATABASE_URL connecting as the table owner and
// TEST_APP_DATABASE_URL connecting as a member of clubhub_app.
func TestTenantPolicies_TwoClubs(t *testing.T) {
	ownerDSN, appDSN := os.Getenv("TEST_DATABASE_URL"), os.Getenv("TEST_APP_DATABASE_URL")
	if ownerDSN == "" || appDSN == "" {
		t.Skip("TEST_DATABASE_URL and TEST_APP_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, MigrateUp(ownerDSN))

	owner, err := NewPool(ctx, PoolConfig{URL: ownerDSN, MaxConns: 2, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer ClosePool(owner)
	// One connection so every tenant call below reuses the same session.
	app, err := NewPool(ctx, PoolConfig{URL: appDSN, MaxConns: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer ClosePool(app)
	require.NoError(t, VerifyTenantRole(ctx, app))

	clubA, clubB := uuid.New(), uuid.New()
	adminA, coachA, coachB := uuid.New(), uuid.New(), uuid.New()
	seed(t, owner, clubA, clubB, adminA, coachA, coachB)

	exec := NewTenantExecutor(app, 5*time.Second)
	visible := func(tc *common.TenantContext) []string {
		ids, err := TenantQuery(ctx, exec, tc, func(ctx context.Context, tx pgx.Tx) ([]string, error) {
			rows, err := tx.Query(ctx, `SELECT id::text FROM users WHERE id::text = ANY($1)`,
				[]string{adminA.String(), coachA.String(), coachB.String()})
			if err != nil {
				return nil, err
			}
			return pgx.CollectRows(rows, pgx.RowTo[string])
		})
		require.NoError(t, err)
		sort.Strings(ids)
		return ids
	}
	sorted := func(ids ...uuid.UUID) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id.String())
		}
		sort.Strings(out)
		return out
	}

	adminOfA := &common.TenantContext{UserID: adminA, Role: models.RoleClubAdmin, ClubID: &clubA}
	assert.Equal(t, sorted(adminA, coachA), visible(adminOfA))

	// Writes against another club's member touch nothing.
	for _, stmt := range []string{
		`UPDATE users SET first_name = 'Mallory' WHERE id = $1`,
		`DELETE FROM users WHERE id = $1`,
	} {
		affected, err := TenantQuery(ctx, exec, adminOfA, func(ctx context.Context, tx pgx.Tx) (int64, error) {
			tag, err := tx.Exec(ctx, stmt, coachB)
			return tag.RowsAffected(), err
		})
		require.NoError(t, err)
		assert.Zero(t, affected, stmt)
	}

	// The same session, rebound without a club, sees nothing.
	assert.Empty(t, visible(&common.TenantContext{UserID: uuid.New(), Role: models.RoleCoach}))
	assert.Empty(t, visible(nil))

	assert.Equal(t, sorted(coachB), visible(&common.TenantContext{UserID: coachB, Role: models.RoleCoach, ClubID: &clubB}))
	assert.Equal(t, sorted(adminA, coachA, coachB), visible(&common.TenantContext{UserID: uuid.New(), Role: models.RolePlatformAdmin}))

	events := func(tc *common.TenantContext) int {
		n, err := TenantQuery(ctx, exec, tc, func(ctx context.Context, tx pgx.Tx) (int, error) {
			var n int
			err := tx.QueryRow(ctx, `SELECT count(*) FROM audit_events WHERE actor_club_id = $1`, clubA).Scan(&n)
			return n, err
		})
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, 1, events(adminOfA))
	assert.Zero(t, events(&common.TenantContext{UserID: coachB, Role: models.RoleClubAdmin, ClubID: &clubB}))
	assert.Zero(t, events(&common.TenantContext{UserID: coachA, Role: models.RoleCoach, ClubID: &clubA}))
}

func seed(t *testing.T, owner *pgxpool.Pool, clubA, clubB, adminA, coachA, coachB uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	for i, club := range []uuid.UUID{clubA, clubB} {
		_, err := owner.Exec(ctx, `INSERT INTO clubs (id, name, subdomain) VALUES ($1, $2, $3)`,
			club, fmt.Sprintf("Club %d", i), fmt.Sprintf("club-%d-%s", i, suffix))
		require.NoError(t, err)
	}
	members := []struct {
		id   uuid.UUID
		role models.Role
		club uuid.UUID
	}{
		{adminA, models.RoleClubAdmin, clubA},
		{coachA, models.RoleCoach, clubA},
		{coachB, models.RoleCoach, clubB},
	}
	for _, m := range members {
		_, err := owner.Exec(ctx, `INSERT INTO users (id, email, role, club_id) VALUES ($1, $2, $3, $4)`,
			m.id, fmt.Sprintf("%s@%s.test", m.id, suffix), string(m.role), m.club)
		require.NoError(t, err)
	}
	_, err := owner.Exec(ctx, `INSERT INTO audit_events (id, action, actor_user_id, actor_club_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), models.AuditUserInvited, adminA, clubA)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = owner.Exec(ctx, `DELETE FROM audit_events WHERE actor_club_id::text = ANY($1)`, []string{clubA.String(), clubB.String()})
		_, _ = owner.Exec(ctx, `DELETE FROM clubs WHERE id::text = ANY($1)`, []string{clubA.String(), clubB.String()})
	})
}
