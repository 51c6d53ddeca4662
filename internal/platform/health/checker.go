package health

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/database"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
	"github.com/SlpAus/sealdice-log-backend/pkg/lifecycle"
)

const (
	checkInterval = 5 * time.Second
	probeTimeout  = 2 * time.Second
)

// probe 对KV存储做一次廉价的读探测。
// 读的是索引键；键不存在不算错误，容量耗尽也不影响可达性。
func probe(s store.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	_, _, err := s.Get(ctx, logindex.IndexKey)
	if err != nil && !store.IsCapacityExceeded(err) {
		return err
	}
	return nil
}

// PerformCheck 执行一次完整的健康检查并更新全局状态。
func PerformCheck(s store.Store) {
	if err := probe(s); err != nil {
		database.UpdateStoreStatus(false)
		return
	}
	database.UpdateStoreStatus(true)
}

// StartStoreHealthCheck 启动后台的持续健康检查循环。
// 它接收一个lifecycle.Handle来管理其生命周期。
func StartStoreHealthCheck(handle *lifecycle.Handle, s store.Store) {
	defer handle.Close()
	fmt.Println("KV存储健康检查器已启动。")

	for {
		if err := handle.Sleep(checkInterval); err != nil {
			fmt.Println("健康检查器: 收到停机信号，正在关闭...")
			return
		}
		PerformCheck(s)
	}
}
