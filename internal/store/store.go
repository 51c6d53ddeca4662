package store

import (
	"context"
	"errors"
)

// 结构化的错误种类在适配器边界处一次性确定。
// 调用方只允许依赖这些哨兵错误，不允许对后端返回的自由文本做匹配。
var (
	// ErrCapacityExceeded 表示存储的总量或条目配额已耗尽
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
	// ErrUnavailable 表示后端暂时不可用
	ErrUnavailable = errors.New("store: backend unavailable")
)

// KeyInfo 描述List返回的单个键
type KeyInfo struct {
	Name string
}

// ListResult 是一页键的枚举结果。
// Complete为true时表示没有更多页；非完整页缺失Cursor是非法状态，
// 调用方应视为"没有可以安全继续的工作"。
type ListResult struct {
	Keys     []KeyInfo
	Cursor   string
	Complete bool
}

// Store 抽象了get/put/delete/list语义的KV存储。
// Get对不存在的键返回("", false, nil)，而不是错误。
// Delete是幂等的，删除不存在的键不报错。
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, cursor string, limit int64) (*ListResult, error)
}

// IsCapacityExceeded 判断一个错误是否属于容量耗尽
func IsCapacityExceeded(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsUnavailable 判断一个错误是否属于后端暂时不可用
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
