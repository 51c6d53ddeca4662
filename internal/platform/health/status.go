package health

import (
	"net/http"

	"github.com/SlpAus/sealdice-log-backend/internal/platform/database"
	"github.com/gin-gonic/gin"
)

// Handler 处理 GET /api/health，暴露KV存储的当前健康状态
func Handler(c *gin.Context) {
	if !database.IsStoreHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
