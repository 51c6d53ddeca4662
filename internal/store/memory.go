package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore 是进程内的Store实现，用于本地运行和测试。
// MaxEntries>0时启用条目配额；PutHook允许测试注入写入故障。
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]string
	MaxEntries int
	// PutHook 在每次Put前被调用（不加锁），返回非nil时写入以该错误失败
	PutHook func(key string) error
	// GetHook 在每次Get前被调用（不加锁），返回非nil时读取以该错误失败
	GetHook func(key string) error
}

// NewMemoryStore 创建一个空的内存Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get 读取键对应的值，不存在时返回("", false, nil)
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.GetHook != nil {
		if err := s.GetHook(key); err != nil {
			return "", false, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok, nil
}

// Put 写入键值，条目配额耗尽时返回ErrCapacityExceeded
func (s *MemoryStore) Put(ctx context.Context, key string, value string) error {
	if s.PutHook != nil {
		if err := s.PutHook(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MaxEntries > 0 {
		if _, exists := s.data[key]; !exists && len(s.data) >= s.MaxEntries {
			return fmt.Errorf("%w: 已达到条目配额 %d", ErrCapacityExceeded, s.MaxEntries)
		}
	}
	s.data[key] = value
	return nil
}

// Delete 幂等删除
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List 按键排序后做偏移分页，游标是下一页的起始偏移
func (s *MemoryStore) List(ctx context.Context, cursor string, limit int64) (*ListResult, error) {
	if limit <= 0 {
		limit = 1000
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	var offset int64
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("非法的分页游标 %q: %w", cursor, err)
		}
		offset = parsed
	}

	result := &ListResult{}
	if offset >= int64(len(keys)) {
		result.Complete = true
		return result, nil
	}

	end := offset + limit
	if end >= int64(len(keys)) {
		end = int64(len(keys))
		result.Complete = true
	} else {
		result.Cursor = strconv.FormatInt(end, 10)
	}
	for _, k := range keys[offset:end] {
		result.Keys = append(result.Keys, KeyInfo{Name: k})
	}
	return result, nil
}

// Len 返回当前条目数量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
