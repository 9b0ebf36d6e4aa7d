package test_utils

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/eventboard/internal/config"
	"github.com/klokku/eventboard/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	postgresOnce sync.Once
	postgresCfg  config.Database
	postgresErr  error
)

func startPostgres(ctx context.Context) (config.Database, error) {
	container, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithDatabase("eventboard"),
		postgres.WithUsername("test_eventboard"),
		postgres.WithPassword("test_eventboard"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return config.Database{}, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return config.Database{}, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return config.Database{}, err
	}
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Host:   host,
		Port:   port.Int(),
		User:   "test_eventboard",
		Pass:   "test_eventboard",
		Name:   "eventboard",
		Schema: "public",
	}
	if err := database.MigratePostgres(cfg); err != nil {
		return config.Database{}, err
	}
	return cfg, nil
}

// SetupPostgres starts a shared Postgres container on first use and returns a pool with an empty
// event table. The test is skipped in short mode or when no container provider is available.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	postgresOnce.Do(func() {
		postgresCfg, postgresErr = startPostgres(ctx)
	})
	if postgresErr != nil {
		t.Fatalf("Failed to start postgres container: %v", postgresErr)
	}

	pool, err := database.OpenPostgres(ctx, postgresCfg)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "TRUNCATE event"); err != nil {
		t.Fatalf("Failed to clean event table: %v", err)
	}
	return pool
}
