package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SlpAus/sealdice-log-backend/api"
	"github.com/SlpAus/sealdice-log-backend/internal/dicelog"
	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/config"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/database"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/health"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/shutdown"
	"github.com/SlpAus/sealdice-log-backend/internal/platform/startup"
	"github.com/SlpAus/sealdice-log-backend/internal/retention"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
	"github.com/SlpAus/sealdice-log-backend/pkg/lifecycle"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// buildStore 按配置选择KV存储后端
func buildStore(cfg *config.Config) store.Store {
	switch cfg.Database.Backend {
	case "sqlite":
		database.InitDB(cfg.Database.Sqlite)
		s, err := store.NewSqliteStore(database.DB, cfg.Database.Sqlite.MaxEntries)
		if err != nil {
			panic(fmt.Sprintf("无法初始化SQLite存储: %v", err))
		}
		return s
	case "memory":
		return store.NewMemoryStore()
	default:
		database.InitRedis(cfg.Database.Redis)
		return store.NewRedisStore(database.RDB)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}

	kv := buildStore(cfg)
	index := logindex.NewManager(kv, cfg.Retention.MaxIndexRetries)
	engine := retention.NewEngine(kv, index)
	engine.Healthy = database.IsStoreHealthy

	// 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(kv, index); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck(kv)

	svc, err := dicelog.NewService(kv, index, engine, dicelog.Options{
		FrontendURL:     cfg.Frontend.URL,
		BackupAPIURL:    cfg.Backup.APIURL,
		RetentionDays:   cfg.RetentionDays(),
		EmergencyDays:   cfg.EmergencyDays(),
		EmergencyBudget: cfg.EmergencyBudget(),
	})
	if err != nil {
		panic(err.Error())
	}

	// 后台服务的生命周期管理
	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()

	healthHandle, err := gracefulMgr.NewServiceHandle("store-health-check")
	if err != nil {
		panic(err.Error())
	}
	go health.StartStoreHealthCheck(healthHandle, kv)

	sweepHandle, err := gracefulMgr.NewServiceHandle("retention-scheduler")
	if err != nil {
		panic(err.Error())
	}
	go engine.StartScheduler(sweepHandle, cfg.SweepInterval(), cfg.RetentionDays())

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		// 允许的前端地址（去掉规范化时保留的末尾斜杠）
		AllowOrigins: []string{strings.TrimRight(cfg.Frontend.URL, "/")},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept-Version"},
		MaxAge:       12 * time.Hour,
	}))

	api.SetupRoutes(r, cfg, dicelog.NewHandler(svc))

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("Failed to start server: " + err.Error())
		}
	}()

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr)
	coordinator.ListenForSignalsAndShutdown(server, svc)
}
