package logindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/store"
)

// ErrUpdateFailed 表示索引表的读改写在用尽重试后仍然失败。
// 此时底层的日志条目本身已经写入成功，只是在保留清理的视角下暂时"未被跟踪"。
var ErrUpdateFailed = errors.New("logindex: 索引更新在重试后仍然失败")

// retryBackoffBase 是读改写重试的退避基数，第n次重试前等待 n*100ms
const retryBackoffBase = 100 * time.Millisecond

// Manager 维护索引表的读改写。
// 目标存储没有锁原语，并发上传可能竞争同一次读改写；
// 这里的缓解手段是有界重试加幂等的再检查，而不是互斥锁。
type Manager struct {
	store      store.Store
	maxRetries int
}

// NewManager 创建索引表管理器。maxRetries<=0时使用默认的3次。
func NewManager(s store.Store, maxRetries int) *Manager {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Manager{store: s, maxRetries: maxRetries}
}

// Read 读取并解析索引表，面向只读调用方。
// 表不存在、读取失败或内容损坏时返回一个全新的空表：
// 这里有意用可用性换取对索引损坏的感知，损坏只打日志不上抛。
func (m *Manager) Read(ctx context.Context) *Table {
	table, err := m.read(ctx)
	if err != nil {
		fmt.Printf("索引表: 读取失败，按空表处理: %v\n", err)
		return NewTable()
	}
	return table
}

// read 读取并解析索引表，区分"表不存在/损坏"与"存储读取失败"。
// 前者返回空表，后者上抛错误：读改写路径绝不能把读取失败当作空表写回，
// 否则一次瞬时故障就会抹掉整张索引。
func (m *Manager) read(ctx context.Context) (*Table, error) {
	raw, ok, err := m.store.Get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewTable(), nil
	}

	var table Table
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		fmt.Printf("索引表: 内容损坏，按空表处理: %v\n", err)
		return NewTable(), nil
	}
	if table.Logs == nil {
		table.Logs = []Entry{}
	}
	return &table, nil
}

// Add 把一个新的存储键登记到索引表中，带重试的读改写。
// 键已存在时是无操作（幂等），因此并发的重复登记不会产生重复条目。
func (m *Manager) Add(ctx context.Context, key, createdAt string) error {
	var lastErr error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, time.Duration(attempt-1)*retryBackoffBase); err != nil {
				return err
			}
		}

		table, err := m.read(ctx)
		if err != nil {
			lastErr = err
			fmt.Printf("索引表: 第%d次读取失败: %v\n", attempt, err)
			continue
		}
		if table.Contains(key) {
			return nil
		}
		table.Logs = append(table.Logs, Entry{Key: key, CreatedAt: createdAt})

		if err := m.write(ctx, table); err != nil {
			lastErr = err
			fmt.Printf("索引表: 第%d次写入失败: %v\n", attempt, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUpdateFailed, lastErr)
}

// Remove 从索引表中过滤掉给定的键。
// 写回前必须重新读取最新的表，以并入清理期间其他上传并发登记的新条目；
// 用过期副本写回会悄悄丢掉这些并发新增。
// 读取失败时直接放弃本次过滤：下一轮基于索引的清理会重新处理这些键。
func (m *Manager) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	doomed := make(map[string]bool, len(keys))
	for _, k := range keys {
		doomed[k] = true
	}

	table, err := m.read(ctx)
	if err != nil {
		return fmt.Errorf("索引表: 清理前读取失败: %w", err)
	}
	kept := make([]Entry, 0, len(table.Logs))
	for _, e := range table.Logs {
		if !doomed[e.Key] {
			kept = append(kept, e)
		}
	}
	table.Logs = kept

	if err := m.write(ctx, table); err != nil {
		return fmt.Errorf("索引表: 清理后写回失败: %w", err)
	}
	return nil
}

// Contains 重新读取索引表并检查键是否存在，用于上传后的登记校验
func (m *Manager) Contains(ctx context.Context, key string) bool {
	return m.Read(ctx).Contains(key)
}

// write 完整重写索引表
func (m *Manager) write(ctx context.Context, table *Table) error {
	table.Version = indexVersion
	table.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("无法序列化索引表: %w", err)
	}
	return m.store.Put(ctx, IndexKey, string(payload))
}

// sleepCtx 是可被上下文打断的休眠
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
