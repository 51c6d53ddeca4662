package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/sealdice-log-backend/pkg/lifecycle"
)

// StartScheduler 启动一个后台Goroutine来定期执行索引清理。
// 它接收一个lifecycle.Handle来管理其生命周期。
func (e *Engine) StartScheduler(handle *lifecycle.Handle, interval time.Duration, retentionDays int) {
	defer handle.Close() // 确保在退出时通知管理器
	fmt.Println("日志保留清理调度器已启动。")

	for {
		// 使用可中断的休眠来代替ticker，
		// 收到停机信号时可以立刻从休眠中唤醒并退出。
		if err := handle.Sleep(interval); err != nil {
			fmt.Printf("清理调度器: 休眠被中断，正在关闭...\n")
			return
		}

		if e.Healthy != nil && !e.Healthy() {
			fmt.Println("清理调度器: 检测到KV存储不可用，跳过本次清理。")
			continue
		}

		fmt.Println("清理调度器: 正在执行定时清理...")
		result, err := e.SweepWithIndex(handle.Ctx(), retentionDays)
		if err != nil {
			// 如果错误是由于停机信号导致的，则静默退出
			if err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Printf("清理调度器错误: 执行清理失败: %v\n", err)
			}
			continue
		}
		if result.DeletedCount > 0 {
			fmt.Printf("清理调度器: 已删除%d条超过%d天的日志。\n", result.DeletedCount, result.RetentionDays)
		}
	}
}
