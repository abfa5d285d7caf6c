//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres"
	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres/repositories"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "psicorisco",
				"POSTGRES_PASSWORD": "psicorisco",
				"POSTGRES_DB":       "psicorisco_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:           host,
		Port:           port.Int(),
		User:           "psicorisco",
		Password:       "psicorisco",
		DBName:         "psicorisco_test",
		SSLMode:        "disable",
		MigrationsPath: filepath.Join("..", "..", "..", "..", "..", "migrations"),
	}

	migrator, err := postgres.NewMigrator(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	conn, err := postgres.NewConnection(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	return conn.Pool()
}

func TestQueueRepository_LeaseIsExclusive(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewQueueRepository(pool, logging.NewNopLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	item := automation.NewWorkItem(uuid.New(), uuid.New(), 3, now)
	_, err := repo.Enqueue(ctx, item)
	require.NoError(t, err)

	const workers = 10
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		leased []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("worker-%d", i)
			got, err := repo.Lease(ctx, owner, time.Minute, now)
			if err != nil {
				assert.Equal(t, apperrors.ErrCodeLeaseNotAcquired, apperrors.GetCode(err))
				return
			}
			mu.Lock()
			leased = append(leased, got.LeaseOwner)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, leased, 1, "exactly one worker must win the lease")

	got, err := repo.GetByResponse(ctx, item.ResponseID)
	require.NoError(t, err)
	assert.Equal(t, automation.StateProcessing, got.State)
	assert.Equal(t, leased[0], got.LeaseOwner)
}

func TestQueueRepository_EnqueueIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewQueueRepository(pool, logging.NewNopLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	responseID := uuid.New()
	first, err := repo.Enqueue(ctx, automation.NewWorkItem(responseID, uuid.New(), 3, now))
	require.NoError(t, err)

	second, err := repo.Enqueue(ctx, automation.NewWorkItem(responseID, uuid.New(), 3, now))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestQueueRepository_UpdateRequiresLease(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewQueueRepository(pool, logging.NewNopLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	item := automation.NewWorkItem(uuid.New(), uuid.New(), 3, now)
	_, err := repo.Enqueue(ctx, item)
	require.NoError(t, err)

	leased, err := repo.Lease(ctx, "owner-a", time.Minute, now)
	require.NoError(t, err)

	require.NoError(t, leased.Advance(automation.StateAnalyzed, now))
	err = repo.Update(ctx, leased, "owner-b")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLeaseNotHeld, apperrors.GetCode(err))

	require.NoError(t, repo.Update(ctx, leased, "owner-a"))
}

func TestQueueRepository_ReapExpiredLeases(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewQueueRepository(pool, logging.NewNopLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	item := automation.NewWorkItem(uuid.New(), uuid.New(), 3, now)
	_, err := repo.Enqueue(ctx, item)
	require.NoError(t, err)

	_, err = repo.Lease(ctx, "crashed-worker", time.Nanosecond, now)
	require.NoError(t, err)

	reaped, err := repo.ReapExpired(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	got, err := repo.GetByResponse(ctx, item.ResponseID)
	require.NoError(t, err)
	assert.Equal(t, automation.StatePending, got.State)
	assert.Empty(t, got.LeaseOwner)
}
