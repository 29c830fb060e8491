//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coregx/dqo"
)

// DatabaseSetup holds a running database and its cleanup.
type DatabaseSetup struct {
	DSN       string
	Container testcontainers.Container
	Dialect   string

	dbs []*dqo.Database
}

// Open opens a new Database on the setup's DSN, closed by Close.
func (ds *DatabaseSetup) Open(t *testing.T, opts ...dqo.Option) *dqo.Database {
	t.Helper()
	db, err := dqo.Open(ds.Dialect, ds.DSN, opts...)
	require.NoError(t, err)
	ds.dbs = append(ds.dbs, db)
	return db
}

// OpenHybrid opens a database/sql pool for the synchronous API and a pgx pool for the
// asynchronous one.
func (ds *DatabaseSetup) OpenHybrid(t *testing.T) *dqo.Database {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), ds.DSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return ds.Open(t, dqo.WithPgxPool(pool))
}

// Close cleans up database resources.
func (ds *DatabaseSetup) Close() {
	for _, db := range ds.dbs {
		db.Close() //nolint:errcheck
	}
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

// SetupPostgreSQLTestDB starts a PostgreSQL database.
// Uses testcontainers if available, falls back to env DSN.
func SetupPostgreSQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	// Check for manual DSN first (allows testing without Docker)
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return &DatabaseSetup{DSN: dsn, Dialect: "postgres"}
	}

	pgContainer, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return &DatabaseSetup{DSN: dsn, Container: pgContainer, Dialect: "postgres"}
}

// SetupMySQLTestDB starts a MySQL database.
// Uses testcontainers if available, falls back to env DSN.
func SetupMySQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		return &DatabaseSetup{DSN: withParseTime(dsn), Dialect: "mysql"}
	}

	mysqlContainer, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	dsn, err := mysqlContainer.ConnectionString(ctx)
	require.NoError(t, err)

	return &DatabaseSetup{DSN: withParseTime(dsn), Container: mysqlContainer, Dialect: "mysql"}
}

// withParseTime makes the MySQL driver return time.Time for DATETIME and TIMESTAMP
// columns instead of []uint8.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// execAll runs raw statements on one connection.
func execAll(t *testing.T, db *dqo.Database, statements ...string) {
	t.Helper()
	ctx := context.Background()
	c, err := db.Open(ctx)
	require.NoError(t, err)
	defer c.Close()
	for _, s := range statements {
		_, err := c.Execute(ctx, s)
		require.NoError(t, err, s)
	}
}
