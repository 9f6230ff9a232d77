package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifesync/lifesync/internal/database"
)

func setupSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLite(db)
}

func TestSQLiteSetGet(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a:1", []byte("one"), 0))
	got, err := s.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	require.NoError(t, s.Set(ctx, "a:1", []byte("uno"), 0))
	got, err = s.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteExpiry(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "rewards:1:1", []byte("[]"), time.Hour))
	require.NoError(t, s.Set(ctx, "rewards:1:2", []byte("[]"), 0))

	now = now.Add(2 * time.Hour)

	_, err := s.Get(ctx, "rewards:1:1")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := s.Scan(ctx, "rewards:1:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"rewards:1:2"}, keys)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteScanPattern(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	for _, k := range []string{"automation_rule:1:200", "automation_rule:1:100", "automation_rule:12:100", "notification:1:5"} {
		require.NoError(t, s.Set(ctx, k, []byte("{}"), 0))
	}

	keys, err := s.Scan(ctx, "automation_rule:1:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"automation_rule:1:100", "automation_rule:1:200"}, keys)

	keys, err = s.Scan(ctx, "automation_rule:*")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestSQLiteDelete(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", []byte("v"), 0))
	require.NoError(t, s.Set(ctx, "k2", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k1", "k2", "k3"))

	keys, err := s.Scan(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestJSONHelpers(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, SetJSON(ctx, s, "p", payload{Name: "x", Count: 3}, 0))

	var got payload
	require.NoError(t, GetJSON(ctx, s, "p", &got))
	assert.Equal(t, payload{Name: "x", Count: 3}, got)

	assert.ErrorIs(t, GetJSON(ctx, s, "nope", &got), ErrNotFound)
}

func TestDedupeSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupeSorted([]string{"a", "a", "b", "c", "c"}))
	assert.Empty(t, dedupeSorted(nil))
}
