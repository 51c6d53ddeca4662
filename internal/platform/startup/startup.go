package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
)

// InitializeApplication 是应用首次启动时执行的总入口。
// 它验证KV存储可达，并报告索引表的当前状态；
// 索引表是惰性创建的，首次上传之前不存在是正常情况。
func InitializeApplication(s store.Store, index *logindex.Manager) error {
	fmt.Println("开始应用首次初始化...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := s.Get(ctx, logindex.IndexKey); err != nil {
		return fmt.Errorf("KV存储不可达，无法启动: %w", err)
	}

	table := index.Read(ctx)
	fmt.Printf("索引表当前跟踪%d条日志（schema v%d）。\n", len(table.Logs), table.Version)

	fmt.Println("应用初始化完成！")
	return nil
}
