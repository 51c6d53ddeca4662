package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCapacity(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	ms.MaxEntries = 2

	require.NoError(t, ms.Put(ctx, "a#111111", "1"))
	require.NoError(t, ms.Put(ctx, "b#222222", "2"))

	err := ms.Put(ctx, "c#333333", "3")
	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))

	// 覆盖已有键不占用新配额
	require.NoError(t, ms.Put(ctx, "a#111111", "1x"))

	// 删除腾出空间后可以继续写入
	require.NoError(t, ms.Delete(ctx, "b#222222"))
	require.NoError(t, ms.Put(ctx, "c#333333", "3"))
}

func TestMemoryStorePutHook(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	calls := 0
	ms.PutHook = func(key string) error {
		calls++
		if calls == 1 {
			return errors.New("injected failure")
		}
		return nil
	}

	require.Error(t, ms.Put(ctx, "a#111111", "1"))
	require.NoError(t, ms.Put(ctx, "a#111111", "1"))
	assert.Equal(t, 1, ms.Len())
}

func TestMemoryStoreListPagination(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "a", "1"))
	require.NoError(t, ms.Put(ctx, "b", "2"))
	require.NoError(t, ms.Put(ctx, "c", "3"))

	page, err := ms.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Keys, 2)
	assert.False(t, page.Complete)
	require.NotEmpty(t, page.Cursor)

	page, err = ms.List(ctx, page.Cursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Keys, 1)
	assert.True(t, page.Complete)
	assert.Empty(t, page.Cursor)
}
