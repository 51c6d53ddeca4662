package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
	"github.com/google/uuid"
)

// listPageSize 是清理扫描时单页枚举的键数量
const listPageSize = 1000

// Result 汇总一次清理的结果，cleanup接口会把它原样返回给运维方
type Result struct {
	DeletedCount   int      `json:"deletedCount"`
	ProcessedCount int      `json:"processedCount"`
	RetentionDays  int      `json:"retentionDays"`
	Logs           []string `json:"logs"`
}

func (r *Result) logf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	r.Logs = append(r.Logs, line)
}

// Engine 负责按保留窗口淘汰过期的日志条目。
// 主策略基于索引表，一次读取即可分区；全量扫描策略留作
// 没有索引可用时的回退。
type Engine struct {
	store store.Store
	index *logindex.Manager
	// Healthy 为nil时不做健康门控；定时清理在存储不健康时跳过本轮
	Healthy func() bool
}

// NewEngine 创建保留清理引擎
func NewEngine(s store.Store, index *logindex.Manager) *Engine {
	return &Engine{store: s, index: index}
}

// Cutoff 计算保留截止时间：按日历天做减法，
// 当天创建的条目在同一天的任何时刻都不会被淘汰。
func Cutoff(retentionDays int) time.Time {
	if retentionDays < 1 {
		retentionDays = 1
	}
	return time.Now().AddDate(0, 0, -retentionDays)
}

// storedTimestamp 是清理时从存储值中解出的最小字段集
type storedTimestamp struct {
	CreatedAt string `json:"created_at"`
}

// parseCreatedAt 解析条目的创建时间，无法解析时返回false
func parseCreatedAt(raw string) (time.Time, bool) {
	var meta storedTimestamp
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return time.Time{}, false
	}
	if meta.CreatedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, meta.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SweepWithIndex 基于索引表执行一次保留清理。
// 单个条目的删除失败不会中断其余条目；只要有删除成功，
// 就通过索引管理器的Remove（内部会重新读取最新表）更新索引。
func (e *Engine) SweepWithIndex(ctx context.Context, retentionDays int) (*Result, error) {
	result := &Result{RetentionDays: retentionDays, Logs: []string{}}
	runID := uuid.NewString()
	cutoff := Cutoff(retentionDays)
	result.logf("Cleanup[%s]: index sweep started, cutoff=%s", runID, cutoff.UTC().Format(time.RFC3339))

	table := e.index.Read(ctx)
	result.ProcessedCount = len(table.Logs)

	deletedKeys := make([]string, 0)
	for _, entry := range table.Logs {
		createdAt, err := time.Parse(time.RFC3339, entry.CreatedAt)
		if err != nil {
			// 时间戳损坏的条目跳过，宁可保留也不误删
			result.logf("Cleanup[%s]: skip key %s, unparsable created_at %q", runID, entry.Key, entry.CreatedAt)
			continue
		}
		if !createdAt.Before(cutoff) {
			continue
		}

		if err := e.store.Delete(ctx, entry.Key); err != nil {
			result.logf("Cleanup[%s]: failed to delete key %s: %v", runID, entry.Key, err)
			continue
		}
		result.DeletedCount++
		deletedKeys = append(deletedKeys, entry.Key)
		result.logf("Cleanup[%s]: deleted old log key: %s", runID, entry.Key)
	}

	if len(deletedKeys) > 0 {
		if err := e.index.Remove(ctx, deletedKeys); err != nil {
			result.logf("Cleanup[%s]: index update failed: %v", runID, err)
			return result, err
		}
		result.logf("Cleanup[%s]: index updated, %d entries removed", runID, len(deletedKeys))
	}

	result.logf("Cleanup[%s]: done, deleted %d of %d", runID, result.DeletedCount, result.ProcessedCount)
	return result, nil
}

// SweepFullScan 不依赖索引表，分页枚举存储中的所有键逐个检查。
// 这是索引出现之前的老策略，保留给没有索引的存储当回退使用。
// 缺失或无法解析的条目跳过并计入processed，单页错误视为"无法安全继续"。
func (e *Engine) SweepFullScan(ctx context.Context, retentionDays int) (*Result, error) {
	result := &Result{RetentionDays: retentionDays, Logs: []string{}}
	runID := uuid.NewString()
	cutoff := Cutoff(retentionDays)
	result.logf("Cleanup[%s]: full scan started, cutoff=%s", runID, cutoff.UTC().Format(time.RFC3339))

	cursor := ""
	for {
		page, err := e.store.List(ctx, cursor, listPageSize)
		if err != nil {
			result.logf("Cleanup[%s]: list failed, stopping: %v", runID, err)
			return result, err
		}

		for _, k := range page.Keys {
			key := k.Name
			if key == logindex.IndexKey {
				continue
			}
			result.ProcessedCount++

			raw, ok, err := e.store.Get(ctx, key)
			if err != nil || !ok {
				continue
			}
			createdAt, parsed := parseCreatedAt(raw)
			if !parsed {
				continue
			}
			if !createdAt.Before(cutoff) {
				continue
			}

			if err := e.store.Delete(ctx, key); err != nil {
				result.logf("Cleanup[%s]: failed to delete key %s: %v", runID, key, err)
				continue
			}
			result.DeletedCount++
			result.logf("Cleanup[%s]: deleted old log key: %s", runID, key)
		}

		if page.Complete {
			break
		}
		if page.Cursor == "" {
			// 未完成的页却没有游标：没有可以安全继续的工作
			result.logf("Cleanup[%s]: incomplete page without cursor, stopping", runID)
			break
		}
		cursor = page.Cursor
	}

	result.logf("Cleanup[%s]: done, deleted %d of %d", runID, result.DeletedCount, result.ProcessedCount)
	return result, nil
}
