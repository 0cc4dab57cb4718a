package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", "file:storetests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS slots (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
DELETE FROM slots;
`)
	require.NoError(t, err)
	return NewSQLiteStore(db)
}

func TestSQLiteStore_GetMissingKey(t *testing.T) {
	s := setupStore(t)
	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStore_SetOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	// absent key is not an error
	require.NoError(t, s.Delete(ctx, "k"))
}

func TestSQLiteStore_SetMany(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	kv := map[string]string{"a": "1", "b": "2", "c": "3"}
	require.NoError(t, s.SetMany(ctx, kv))

	for k, want := range kv {
		v, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, v)
	}
}

func TestInitDatabase_MigratesAndWorks(t *testing.T) {
	ctx := context.Background()
	store, db, err := InitDatabase(ctx, "file:initdbtest?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestMemoryStore_BehavesLikeStore(t *testing.T) {
	var s Store = NewMemoryStore()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, s.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	v, ok, err = s.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
