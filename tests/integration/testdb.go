// Package integration runs the ingestion pipeline against a real PostgreSQL
// database started with testcontainers.
package integration

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/certhub/backend/internal/infrastructure/migration"
	"github.com/certhub/backend/migrations"
)

// schemaVersion is the newest embedded migration
const schemaVersion = 3

// postgresDSN is set by TestMain once the container is up
var postgresDSN string

// TestDB is a connection to the shared container with the schema applied
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
}

// NewTestDB connects to the shared container, applies the embedded
// migrations and empties every table. Tests using it must not run in
// parallel.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	require.NotEmpty(t, postgresDSN, "postgres container is not running")

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(postgresDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	t.Cleanup(func() { sqlDB.Close() })

	m, err := migration.NewEmbedded(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
	v, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(schemaVersion), v)

	tdb := &TestDB{DB: db, t: t}
	tdb.CleanTables()
	return tdb
}

// CleanTables truncates every application table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		require.NoError(tdb.t, tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error)
	}
}
