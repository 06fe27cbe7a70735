package database

import (
	"context"
	"os"
	"testing"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when TEST_DATABASE_URL is set. A single
// connection pool forces every call onto the same backend session.
func TestTenantExecutor_SettingsDoNotLeakAcrossBorrowers(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, PoolConfig{URL: dsn, MaxConns: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer ClosePool(pool)

	exec := NewTenantExecutor(pool, 5*time.Second)
	readSettings := func(ctx context.Context, tx pgx.Tx) ([3]string, error) {
		var out [3]string
		err := tx.QueryRow(ctx, `SELECT
			coalesce(current_setting('app.current_user_id', true), ''),
			coalesce(current_setting('app.current_club_id', true), ''),
			coalesce(current_setting('app.current_role', true), '')`).Scan(&out[0], &out[1], &out[2])
		return out, err
	}

	clubID := uuid.New()
	coach := &common.TenantContext{UserID: uuid.New(), Role: models.RoleCoach, ClubID: &clubID}
	got, err := TenantQuery(ctx, exec, coach, readSettings)
	require.NoError(t, err)
	assert.Equal(t, [3]string{coach.UserID.String(), clubID.String(), "COACH"}, got)

	admin := &common.TenantContext{UserID: uuid.New(), Role: models.RolePlatformAdmin}
	got, err = TenantQuery(ctx, exec, admin, readSettings)
	require.NoError(t, err)
	assert.Equal(t, [3]string{admin.UserID.String(), "", "PLATFORM_ADMIN"}, got)

	// Outside a transaction the session must carry nothing.
	var leaked string
	require.NoError(t, pool.QueryRow(ctx, `SELECT coalesce(current_setting('app.current_club_id', true), '')`).Scan(&leaked))
	assert.Empty(t, leaked)
}
