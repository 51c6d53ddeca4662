package database

import (
	"fmt"
	"sync"
)

// statusManager 负责线程安全地管理和提供存储后端的健康状态。
type statusManager struct {
	mu             sync.RWMutex
	isStoreHealthy bool
}

// 全局的状态管理器实例
var globalStatus = &statusManager{
	isStoreHealthy: true, // 默认启动时是健康的
}

// IsStoreHealthy 返回当前KV存储的健康状态。
func IsStoreHealthy() bool {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.isStoreHealthy
}

// UpdateStoreStatus 用于线程安全地更新健康状态。
func UpdateStoreStatus(isHealthy bool) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	// 只有当状态发生变化时才打印日志
	if globalStatus.isStoreHealthy != isHealthy {
		globalStatus.isStoreHealthy = isHealthy
		if isHealthy {
			fmt.Println("健康检查: KV存储状态已更新为 [可用]")
		} else {
			fmt.Println("健康检查警告: KV存储状态已更新为 [不可用]")
		}
	}
}
