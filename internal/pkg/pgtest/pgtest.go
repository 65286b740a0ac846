// Package pgtest starts a throwaway PostgreSQL for adapter tests.
package pgtest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const image = "postgres:17-alpine"

// Migration returns the absolute path of a file under migrations/.
func Migration(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", name)
}

// Start runs a container with the given migrations applied and returns a pool
// connected to it. It skips the test under -short.
func Start(t *testing.T, migrations ...string) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	scripts := make([]string, 0, len(migrations))
	for _, m := range migrations {
		scripts = append(scripts, Migration(m))
	}

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("finadvise"),
		postgres.WithUsername("finadvise"),
		postgres.WithPassword("finadvise"),
		postgres.WithInitScripts(scripts...),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))

	return pool
}
