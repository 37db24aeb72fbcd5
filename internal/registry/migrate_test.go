package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	db, err := OpenDB()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(db))
	// already at the latest version
	require.NoError(t, RunMigrations(db))

	var version int
	var dirty bool
	require.NoError(t, db.QueryRow(`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty))
	assert.Equal(t, 2, version)
	assert.False(t, dirty)

	var n int
	require.NoError(t, db.Get(&n,
		`SELECT count(*) FROM sqlite_master WHERE name IN ('identities', 'names', 'idx_names_username')`))
	assert.Equal(t, 3, n)
}
