package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationsCreateTrainingRuns(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_create_training_runs.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS training_runs")
	assert.Contains(t, string(data), "run_id        UUID PRIMARY KEY")
}

func TestMigrateUp_NilDB(t *testing.T) {
	err := MigrateUp(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is not configured")
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
