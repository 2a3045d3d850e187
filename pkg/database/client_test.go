package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedMigrations(t *testing.T) {
	ok, err := hasEmbeddedMigrations()
	require.NoError(t, err)
	assert.True(t, ok, "migration files must be embedded in the binary")
}

// Every up migration must ship a matching down migration so golang-migrate
// can roll back a failed deployment.
func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}

	for name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			assert.True(t, names[down], "missing down migration for %s", name)
		case strings.HasSuffix(name, ".down.sql"):
			up := strings.TrimSuffix(name, ".down.sql") + ".up.sql"
			assert.True(t, names[up], "missing up migration for %s", name)
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
}
