package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsSortsSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_add_index.sql", "0001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- noop"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o700))

	names, err := listMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_add_index.sql"}, names)

	_, err = listMigrations(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestListMigrationsShipsInitialSchema(t *testing.T) {
	names, err := listMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])
}

func TestSeedFileName(t *testing.T) {
	assert.Equal(t, "dev_seed.sql", seedFileName("dev"))
	assert.Equal(t, "custom.sql", seedFileName("custom.sql"))
}

func TestResolveDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "migrations")
	got, err := resolveDir(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	wd, err := os.Getwd()
	require.NoError(t, err)
	got, err = resolveDir("seeds")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "seeds"), got)
}

func TestMigrationBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), migrationBackoff(0))
	assert.Equal(t, 100*time.Millisecond, migrationBackoff(1))
	assert.Equal(t, 200*time.Millisecond, migrationBackoff(2))
	assert.Equal(t, migrationMaxBackoff, migrationBackoff(10))
}

func TestShouldRetryMigration(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "closed tx", err: fmt.Errorf("commit: %w", pgx.ErrTxClosed), want: true},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "syntax", err: &pgconn.PgError{Code: "42601"}, want: false},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldRetryMigration(tc.err))
		})
	}
}
