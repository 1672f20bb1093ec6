package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/tileswipe/internal/database"
	"github.com/jask/tileswipe/internal/database/repository"
	"github.com/jask/tileswipe/internal/kv"
)

var _ kv.Store = (*repository.KVRepo)(nil)

func openRepo(t *testing.T, dbPath string) *repository.KVRepo {
	t.Helper()
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewKVRepo(db)
}

func TestKVRepoRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	repo := openRepo(t, filepath.Join(t.TempDir(), "kv.db"))

	_, ok, err := repo.Get(ctx, "tileswipe_index")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "tileswipe_index", "3"))
	require.NoError(t, repo.Set(ctx, "tileswipe_index", "4"))
	require.NoError(t, repo.Set(ctx, "tileswipe_session_start", "1700000000000"))

	v, ok, err := repo.Get(ctx, "tileswipe_index")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "4", v)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "tileswipe_index", entries[0].Key)
	require.False(t, entries[0].UpdatedAt.IsZero())

	require.NoError(t, repo.Delete(ctx, "tileswipe_index", "tileswipe_session_start", "absent"))
	entries, err = repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestKVRepoSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")
	require.NoError(t, openRepo(t, path).Set(ctx, "tileswipe_selections", `{"20-1-2":{"x":1,"y":2,"z":20}}`))

	// migrations are idempotent on an existing file
	v, ok, err := openRepo(t, path).Get(ctx, "tileswipe_selections")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"20-1-2":{"x":1,"y":2,"z":20}}`, v)
}
