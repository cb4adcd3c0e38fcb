package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/localcache/sqlite"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	cache, err := sqlite.Open(path)
	require.NoError(t, err)

	t.Run("should report misses", func(t *testing.T) {
		_, ok, getErr := cache.Get(ctx, "missing")
		require.NoError(t, getErr)
		require.False(t, ok)
	})

	t.Run("should overwrite and delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "workout-session-a", "1"))
		require.NoError(t, cache.Set(ctx, "workout-session-a", "2"))

		value, ok, getErr := cache.Get(ctx, "workout-session-a")
		require.NoError(t, getErr)
		require.True(t, ok)
		require.Equal(t, "2", value)

		require.NoError(t, cache.Delete(ctx, "workout-session-a"))
		require.NoError(t, cache.Delete(ctx, "workout-session-a"))
		_, ok, _ = cache.Get(ctx, "workout-session-a")
		require.False(t, ok)
	})

	t.Run("should list keys by literal prefix", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "workout-session-b", "{}"))
		require.NoError(t, cache.Set(ctx, "workout-session-c", "{}"))
		require.NoError(t, cache.Set(ctx, "workout_session_x", "{}"))
		require.NoError(t, cache.Set(ctx, "theme", "dark"))

		keys, listErr := cache.Keys(ctx, "workout-session-")
		require.NoError(t, listErr)
		require.Equal(t, []string{"workout-session-b", "workout-session-c"}, keys)
	})

	t.Run("should persist across reopen", func(t *testing.T) {
		require.NoError(t, cache.Close())

		reopened, openErr := sqlite.Open(path)
		require.NoError(t, openErr)
		defer reopened.Close()

		value, ok, getErr := reopened.Get(ctx, "theme")
		require.NoError(t, getErr)
		require.True(t, ok)
		require.Equal(t, "dark", value)
	})
}
