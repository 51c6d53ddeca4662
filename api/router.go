package api

import (
	"net/http"

	"github.com/SlpAus/sealdice-log-backend/internal/dicelog"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/config"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/health"
	"github.com/gin-gonic/gin"
)

// RequireFrontendURL 在前端地址缺失时让所有API请求直接失败。
// 这是一个配置错误，与其让空前缀的链接流出去，不如在边界上拦下。
func RequireFrontendURL(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Frontend.URL == "" {
			c.String(http.StatusInternalServerError, "未配置前端地址参数FRONTEND_URL，请设置运行时的变量或编辑 config/config.yaml 添加 frontend.url。FRONTEND_URL is not configured. Please set runtime variable FRONTEND_URL or edit config/config.yaml.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, cfg *config.Config, h *dicelog.Handler) {
	api := router.Group("/api")
	api.Use(RequireFrontendURL(cfg))
	{
		dice := api.Group("/dice")
		{
			dice.PUT("/log", h.UploadLog)
			dice.GET("/load_data", h.LoadData)
			// 运维方手动触发保留清理，GET和POST等价
			dice.GET("/cleanup", h.Cleanup)
			dice.POST("/cleanup", h.Cleanup)
		}

		api.GET("/health", health.Handler)
	}
}
