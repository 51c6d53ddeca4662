package retention

import (
	"context"
	"sort"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/google/uuid"
)

// candidate 是紧急清理收集阶段得到的待淘汰条目
type candidate struct {
	key       string
	createdAt time.Time
}

// EmergencySweep 是存储写满时在上传关键路径上同步执行的紧急淘汰。
// 整个过程共享一个墙钟预算：先分页收集各键的创建时间，
// 预算或页耗尽后按创建时间升序从最旧的开始删除，预算一到立即停止。
// 部分进度是预期结果；它不更新索引表，之后的常规清理会把索引对齐。
func (e *Engine) EmergencySweep(ctx context.Context, retentionDays int, budget time.Duration) (*Result, error) {
	result := &Result{RetentionDays: retentionDays, Logs: []string{}}
	runID := uuid.NewString()
	cutoff := Cutoff(retentionDays)
	deadline := time.Now().Add(budget)
	result.logf("Cleanup[%s]: emergency sweep started, budget=%s", runID, budget)

	// 收集阶段
	candidates := make([]candidate, 0)
	cursor := ""
collect:
	for {
		if time.Now().After(deadline) {
			result.logf("Cleanup[%s]: budget exhausted during collection", runID)
			break
		}

		page, err := e.store.List(ctx, cursor, listPageSize)
		if err != nil {
			result.logf("Cleanup[%s]: list failed, stopping collection: %v", runID, err)
			break
		}

		for _, k := range page.Keys {
			if time.Now().After(deadline) {
				result.logf("Cleanup[%s]: budget exhausted during collection", runID)
				break collect
			}
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
			if createdAt.Before(cutoff) {
				candidates = append(candidates, candidate{key: key, createdAt: createdAt})
			}
		}

		if page.Complete || page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	// 删除阶段：最旧的先删
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].createdAt.Before(candidates[j].createdAt)
	})
	for _, c := range candidates {
		if time.Now().After(deadline) {
			result.logf("Cleanup[%s]: budget exhausted during deletion", runID)
			break
		}
		if err := e.store.Delete(ctx, c.key); err != nil {
			result.logf("Cleanup[%s]: failed to delete key %s: %v", runID, c.key, err)
			continue
		}
		result.DeletedCount++
		result.logf("Cleanup[%s]: deleted old log key: %s", runID, c.key)
	}

	result.logf("Cleanup[%s]: emergency sweep done, deleted %d of %d", runID, result.DeletedCount, result.ProcessedCount)
	return result, nil
}
