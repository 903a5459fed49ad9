package testhelpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/localnerve/crmsync/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer is a running postgres for integration tests
type PostgresContainer struct {
	Container testcontainers.Container
	Config    *config.Config
}

// Terminate stops the container
func (pc *PostgresContainer) Terminate(t *testing.T) {
	if pc.Container == nil {
		return
	}
	if err := pc.Container.Terminate(context.Background()); err != nil {
		t.Logf("Failed to terminate postgres: %v", err)
	}
}

// StartPostgres starts a postgres container and returns a server config
// pointing at it. The test is skipped unless INTEGRATION=true.
func StartPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	if os.Getenv("INTEGRATION") != "true" {
		t.Skip("set INTEGRATION=true to run container tests")
	}

	pc, err := RunPostgres(context.Background(), getEnv("DB_IMAGE", "postgres:16-alpine"))
	if err != nil {
		t.Fatalf("Failed to start postgres: %v", err)
	}
	t.Cleanup(func() { pc.Terminate(t) })
	return pc
}

// RunPostgres starts a postgres container from image
func RunPostgres(ctx context.Context, image string) (*PostgresContainer, error) {
	tcpPort, err := nat.NewPort("tcp", "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	cfg := &config.Config{
		DBType:            "postgres",
		DBDatabase:        "crmsync",
		DBUser:            "crmsync",
		DBPassword:        "crmsync-test",
		DBConnectionLimit: 5,
		AuthSecret:        TestSecret,
		TokenTTL:          time.Hour,
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(tcpPort)},
			Env: map[string]string{
				"POSTGRES_DB":       cfg.DBDatabase,
				"POSTGRES_USER":     cfg.DBUser,
				"POSTGRES_PASSWORD": cfg.DBPassword,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(tcpPort),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	mapped, err := container.MappedPort(ctx, tcpPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	cfg.DBHost = host
	cfg.DBPort = mapped.Port()

	return &PostgresContainer{Container: container, Config: cfg}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
