package kv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisSetGet(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a:1", []byte("one"), 0))
	got, err := r.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	require.NoError(t, r.Set(ctx, "a:1", []byte("uno"), 0))
	got, err = r.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got))

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisExpiry(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "rewards:1:1", []byte("[]"), time.Hour))
	require.NoError(t, r.Set(ctx, "rewards:1:2", []byte("[]"), 0))

	mr.FastForward(2 * time.Hour)

	_, err := r.Get(ctx, "rewards:1:1")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := r.Scan(ctx, "rewards:1:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"rewards:1:2"}, keys)
}

func TestRedisScanPattern(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()

	for _, k := range []string{"automation_rule:1:200", "automation_rule:1:100", "automation_rule:12:100", "notification:1:5"} {
		require.NoError(t, r.Set(ctx, k, []byte("{}"), 0))
	}

	keys, err := r.Scan(ctx, "automation_rule:1:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"automation_rule:1:100", "automation_rule:1:200"}, keys)

	keys, err = r.Scan(ctx, "automation_rule:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"automation_rule:12:100", "automation_rule:1:100", "automation_rule:1:200"}, keys)
}

func TestRedisScanManyKeys(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()

	// More keys than one SCAN page.
	for i := range 250 {
		require.NoError(t, r.Set(ctx, fmt.Sprintf("notification:1:%03d", i), []byte("{}"), 0))
	}

	keys, err := r.Scan(ctx, "notification:1:*")
	require.NoError(t, err)
	assert.Len(t, keys, 250)
	assert.IsIncreasing(t, keys)
}

func TestRedisDelete(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k1", []byte("v"), 0))
	require.NoError(t, r.Set(ctx, "k2", []byte("v"), 0))
	require.NoError(t, r.Delete(ctx, "k1", "k2", "k3"))
	require.NoError(t, r.Delete(ctx))

	keys, err := r.Scan(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisJSONHelpers(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, r, "p", map[string]int{"count": 3}, 0))
	var got map[string]int
	require.NoError(t, GetJSON(ctx, r, "p", &got))
	assert.Equal(t, map[string]int{"count": 3}, got)

	assert.ErrorIs(t, GetJSON(ctx, r, "nope", &got), ErrNotFound)
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)
}
