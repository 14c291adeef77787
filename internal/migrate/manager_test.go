package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewManager_EmptyDSN(t *testing.T) {
	_, err := NewManager("  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "DSN is not set")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "sql")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		switch name := e.Name(); {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", name)
		}
	}
	require.Equal(t, ups, downs)

	latest, err := LatestVersion()
	require.NoError(t, err)
	require.Equal(t, uint(len(ups)), latest)
}

func TestWithMigrationsTable(t *testing.T) {
	dsn := "postgres://u:p@localhost:5432/hrms?sslmode=disable"
	got, err := withMigrationsTable(dsn, defaultMigrationsTable)
	require.NoError(t, err)
	require.Equal(t, dsn, got)

	got, err = withMigrationsTable(dsn, "hr_migrations")
	require.NoError(t, err)
	require.Contains(t, got, "x-migrations-table=hr_migrations")
	require.Contains(t, got, "sslmode=disable")
}

func TestSchemaCoversAuthTables(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "sql/000001_init.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"users", "roles", "permissions", "role_permissions"} {
		require.Contains(t, string(raw), "create table if not exists "+table+" (")
	}
}
