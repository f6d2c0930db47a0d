package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yambati03/touille/internal/infrastructure/persistence/migrations"
)

// TestDatabase is a throwaway Postgres instance backed by a container.
// It is torn down automatically when the test finishes.
type TestDatabase struct {
	Container testcontainers.Container
	DB        *sql.DB
	Gorm      *gormlib.DB
	DSN       string

	t *testing.T
}

// SetupTestDatabase starts a Postgres container and opens both a
// database/sql and a GORM handle against it. Data lives on tmpfs, so
// runs stay fast and leave nothing behind.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "touille_test",
				"POSTGRES_USER":     "touille",
				"POSTGRES_PASSWORD": "touille",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
			Tmpfs: map[string]string{"/var/lib/postgresql/data": "rw,size=512m"},
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://touille:touille@%s:%s/touille_test?sslmode=disable", host, port.Port())

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err, "open sql connection")

	// The ready log fires before the post-init restart completes, so
	// the first pings can still be refused.
	require.Eventually(t, func() bool {
		return db.PingContext(ctx) == nil
	}, 15*time.Second, 250*time.Millisecond, "ping test database")

	gormDB, err := gormlib.Open(gormpostgres.Open(dsn), &gormlib.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "open gorm connection")

	td := &TestDatabase{
		Container: container,
		DB:        db,
		Gorm:      gormDB,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(td.cleanup)

	return td
}

// Migrate applies every embedded migration to the test database.
func (td *TestDatabase) Migrate() {
	td.t.Helper()

	// The migrator shares td.DB, so it is never closed here.
	migrator, err := migrations.New(td.DB, zap.NewNop())
	require.NoError(td.t, err, "build migrator")
	require.NoError(td.t, migrator.Up(), "apply migrations")
}

// TruncateAll wipes every application table while keeping the schema,
// giving each test a clean slate without a container restart.
func (td *TestDatabase) TruncateAll() {
	td.t.Helper()

	_, err := td.DB.Exec(`TRUNCATE "user", "session", "account", "verification", recipes, user_settings CASCADE`)
	require.NoError(td.t, err, "truncate tables")
}

func (td *TestDatabase) cleanup() {
	if gormConn, err := td.Gorm.DB(); err == nil {
		_ = gormConn.Close()
	}
	_ = td.DB.Close()
	if err := td.Container.Terminate(context.Background()); err != nil {
		td.t.Logf("terminate postgres container: %v", err)
	}
}
