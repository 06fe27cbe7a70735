package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrations_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, MigrateUp(dsn))
	// Applying twice is a no-op.
	require.NoError(t, MigrateUp(dsn))

	require.NoError(t, MigrateDown(dsn))
	require.NoError(t, MigrateDown(dsn))
	require.NoError(t, MigrateUp(dsn))
}
