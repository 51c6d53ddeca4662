package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs := newTestRedisStore(t)

	_, ok, err := rs.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "不存在的键不应报错，只返回不存在")

	require.NoError(t, rs.Put(ctx, "aB3x#123456", `{"name":"t"}`))
	val, ok, err := rs.Get(ctx, "aB3x#123456")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"name":"t"}`, val)

	require.NoError(t, rs.Delete(ctx, "aB3x#123456"))
	// 删除是幂等的
	require.NoError(t, rs.Delete(ctx, "aB3x#123456"))
	_, ok, err = rs.Get(ctx, "aB3x#123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreListPagination(t *testing.T) {
	ctx := context.Background()
	rs := newTestRedisStore(t)

	want := map[string]bool{}
	for i := 0; i < 25; i++ {
		key := fmt.Sprintf("key%02d#100000", i)
		require.NoError(t, rs.Put(ctx, key, "v"))
		want[key] = true
	}

	got := map[string]bool{}
	cursor := ""
	for {
		page, err := rs.List(ctx, cursor, 10)
		require.NoError(t, err)
		for _, k := range page.Keys {
			got[k.Name] = true
		}
		if page.Complete {
			break
		}
		require.NotEmpty(t, page.Cursor, "未完成的页必须携带游标")
		cursor = page.Cursor
	}
	assert.Equal(t, want, got)
}

func TestClassifyRedisError(t *testing.T) {
	err := classifyRedisError(errors.New("OOM command not allowed when used memory > 'maxmemory'"))
	assert.True(t, IsCapacityExceeded(err))

	err = classifyRedisError(errors.New("keyspace storage limit exceeded"))
	assert.True(t, IsCapacityExceeded(err))

	err = classifyRedisError(errors.New("quota has been reached for this namespace"))
	assert.True(t, IsCapacityExceeded(err))

	err = classifyRedisError(errors.New("connection refused"))
	assert.False(t, IsCapacityExceeded(err))
	assert.True(t, IsUnavailable(err))
}
