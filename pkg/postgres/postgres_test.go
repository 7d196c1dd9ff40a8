package postgres

import (
	"io/fs"
	"testing"

	"github.com/ds124wfegd/civicportal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "portal",
		Password: "secret",
		DBName:   "civic",
		SSLMode:  "disable",
	})
	assert.Equal(t, "host=db port=5432 user=portal password=secret dbname=civic sslmode=disable", dsn)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "migrations/000001_init.up.sql")
	assert.Contains(t, files, "migrations/000001_init.down.sql")
}
