package retention

import (
	"context"
	"testing"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmergencySweepOldestFirst(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	idx := logindex.NewManager(ms, 3)
	engine := NewEngine(ms, idx)

	now := time.Now()
	putLog(t, ms, idx, "oldest#111111", now.AddDate(0, 0, -10))
	putLog(t, ms, idx, "older#222222", now.AddDate(0, 0, -5))
	putLog(t, ms, idx, "fresh#333333", now)

	result, err := engine.EmergencySweep(ctx, 1, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCount)

	// 晚于紧急保留阈值的条目不会被动
	_, ok, _ := ms.Get(ctx, "fresh#333333")
	assert.True(t, ok)
	_, ok, _ = ms.Get(ctx, "oldest#111111")
	assert.False(t, ok)

	// 紧急清理不更新索引，对齐工作交给后续的常规清理
	table := idx.Read(ctx)
	assert.Len(t, table.Logs, 3)
}

func TestEmergencySweepZeroBudget(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	idx := logindex.NewManager(ms, 3)
	engine := NewEngine(ms, idx)

	putLog(t, ms, idx, "old1#111111", time.Now().AddDate(0, 0, -10))

	// 预算为负等于立刻超时：只返回部分（空）进度，不报错
	result, err := engine.EmergencySweep(ctx, 1, -time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DeletedCount)

	_, ok, _ := ms.Get(ctx, "old1#111111")
	assert.True(t, ok)
}

func TestEmergencySweepSkipsIndexKey(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	idx := logindex.NewManager(ms, 3)
	engine := NewEngine(ms, idx)

	// 索引表没有created_at，即使被扫描到也不会成为候选
	putLog(t, ms, idx, "old1#111111", time.Now().AddDate(0, 0, -10))

	_, err := engine.EmergencySweep(ctx, 1, 5*time.Second)
	require.NoError(t, err)

	_, ok, _ := ms.Get(ctx, logindex.IndexKey)
	assert.True(t, ok)
}
