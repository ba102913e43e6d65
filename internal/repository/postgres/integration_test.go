//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/hasura-webhook/internal/config"
	"github.com/dtroode/hasura-webhook/internal/model"
	repo "github.com/dtroode/hasura-webhook/internal/repository/postgres"
)

var (
	dsn     string
	dsnBase string
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "webhook_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsnBase = fmt.Sprintf("postgres://postgres:password@%s:%s", host, port.Port())
	dsn = databaseDSN("webhook_test")

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func databaseDSN(name string) string {
	return fmt.Sprintf("%s/%s?sslmode=disable", dsnBase, name)
}

// execIn runs statements on a direct connection to the given dsn.
func execIn(t *testing.T, target string, statements ...string) {
	t.Helper()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, target)
	require.NoError(t, err)
	defer conn.Close(ctx)

	for _, stmt := range statements {
		_, err := conn.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
}

func newConnection(t *testing.T) *repo.Connection {
	t.Helper()
	return connect(t, dsn)
}

func connect(t *testing.T, target string) *repo.Connection {
	t.Helper()

	conn, err := repo.NewConnection(context.Background(), config.Database{
		URL:           target,
		RunMigrations: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func countUsers(t *testing.T, conn *repo.Connection, subject string) int {
	t.Helper()

	var n int
	err := conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM public."User" WHERE uuid = $1`, subject).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestUserRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	conn := newConnection(t)
	ur := repo.NewUserRepository(conn, 5*time.Second)

	_, err := ur.GetBySubject(ctx, "crud-subject")
	require.ErrorIs(t, err, model.ErrNotFound)

	created, err := ur.Create(ctx, "crud-subject")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = ur.Create(ctx, "crud-subject")
	require.ErrorIs(t, err, model.ErrUniqueViolation)

	got, err := ur.GetBySubject(ctx, "crud-subject")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestUserRepository_ResolveOrCreate_Sequential(t *testing.T) {
	ctx := context.Background()
	conn := newConnection(t)
	ur := repo.NewUserRepository(conn, 5*time.Second)

	first, err := ur.ResolveOrCreate(ctx, "abc123")
	require.NoError(t, err)
	second, err := ur.ResolveOrCreate(ctx, "abc123")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, countUsers(t, conn, "abc123"))
}

func TestUserRepository_ResolveOrCreate_ConcurrentFirstLogins(t *testing.T) {
	conn := newConnection(t)
	ur := repo.NewUserRepository(conn, 5*time.Second)

	subject := fmt.Sprintf("race-%d", time.Now().UnixNano())
	assertSingleUserUnderRace(t, ur, subject)
	assert.Equal(t, 1, countUsers(t, conn, subject))
}

func TestUserRepository_PreexistingUserTable(t *testing.T) {
	const name = "hasura_managed"
	execIn(t, dsn, "CREATE DATABASE "+name)
	execIn(t, databaseDSN(name),
		`CREATE TABLE public."User" (id BIGSERIAL PRIMARY KEY, uuid TEXT NOT NULL)`,
		`INSERT INTO public."User" (uuid) VALUES ('existing-subject')`,
	)

	conn := connect(t, databaseDSN(name))
	ur := repo.NewUserRepository(conn, 5*time.Second)
	ctx := context.Background()

	existing, err := ur.GetBySubject(ctx, "existing-subject")
	require.NoError(t, err)
	assert.False(t, existing.CreatedAt.IsZero())

	_, err = ur.Create(ctx, "existing-subject")
	require.ErrorIs(t, err, model.ErrUniqueViolation)

	assertSingleUserUnderRace(t, ur, "legacy-race")
	assert.Equal(t, 1, countUsers(t, conn, "legacy-race"))
}

func assertSingleUserUnderRace(t *testing.T, ur *repo.UserRepository, subject string) {
	t.Helper()

	const callers = 32
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ids   = make([]int64, callers)
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			user, err := ur.ResolveOrCreate(ctx, subject)
			ids[i], errs[i] = user.ID, err
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, ids[0], ids[i], "caller %d", i)
	}
}
