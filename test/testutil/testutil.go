// Package testutil starts the single PostgreSQL container the
// pkg/backend/postgres integration tests share, mirroring the
// sync.Once-guarded singleton container pattern used for Postgres-backed
// integration tests in this corpus, simplified here: this engine's tests
// need one schema per test inside a shared database, not a freshly cloned
// database per test.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// ensureSingleton lazily starts the shared PostgreSQL container.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("pgview"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx)
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("get postgres connection string: %w", err)
			return
		}
		singletonDSN = dsn + "sslmode=disable"
		// Container is not retained: testcontainers' reaper handles cleanup.
	})
	return singletonDSN, singletonErr
}

// DSN returns the shared container's connection string, starting the
// container on first use. Every caller should still connect under its own
// schema (see SchemaName) so parallel tests cannot collide on table names.
func DSN(tb testing.TB) string {
	tb.Helper()
	dsn, err := ensureSingleton()
	require.NoError(tb, err, "failed to start postgres container")
	return dsn
}

// SchemaName returns a fresh, random schema name for one test's handle.
// pkg/backend/postgres.Backend.Open creates the schema itself; tests never
// need to drop it, since the whole container is disposable.
func SchemaName(tb testing.TB) string {
	tb.Helper()
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "t_" + hex.EncodeToString(b)
}
