package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore 是基于Redis的Store实现。
// List使用SCAN游标实现分页枚举。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore 用一个已初始化的Redis客户端创建RedisStore
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// classifyRedisError 在适配器边界把Redis的自由文本错误映射为结构化错误种类。
// 这是整个代码库里唯一允许对错误文本做匹配的地方。
func classifyRedisError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "oom") ||
		strings.Contains(msg, "maxmemory") ||
		strings.Contains(msg, "limit exceeded") ||
		strings.Contains(msg, "quota") {
		return fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Get 读取键对应的值，不存在时返回("", false, nil)
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, classifyRedisError(err)
	}
	return val, true, nil
}

// Put 写入键值，容量耗尽时返回ErrCapacityExceeded
func (s *RedisStore) Put(ctx context.Context, key string, value string) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return classifyRedisError(err)
	}
	return nil
}

// Delete 幂等删除
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return classifyRedisError(err)
	}
	return nil
}

// List 按SCAN游标分页枚举所有键
func (s *RedisStore) List(ctx context.Context, cursor string, limit int64) (*ListResult, error) {
	var cur uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("非法的分页游标 %q: %w", cursor, err)
		}
		cur = parsed
	}
	if limit <= 0 {
		limit = 1000
	}

	keys, next, err := s.rdb.Scan(ctx, cur, "*", limit).Result()
	if err != nil {
		return nil, classifyRedisError(err)
	}

	result := &ListResult{Keys: make([]KeyInfo, 0, len(keys))}
	for _, k := range keys {
		result.Keys = append(result.Keys, KeyInfo{Name: k})
	}
	if next == 0 {
		result.Complete = true
	} else {
		result.Cursor = strconv.FormatUint(next, 10)
	}
	return result, nil
}
