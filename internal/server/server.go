package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/api"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/config"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/logger"
	facts "github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/store"
)

// Server HTTP 服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	facts  *facts.MemoryStore
	log    logger.Logger
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, log logger.Logger) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewNop()
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化数据目录失败: %w", err)
	}

	sqliteStore, err := store.New(filepath.Join(dataDir, "stockpilot.db"))
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	// 首次启动以文件配置的阈值落库，此后以库内值为准，PUT 的修改跨重启生效
	if _, err := sqliteStore.GetConfig("pipeline"); err != nil && cfg.Pipeline != nil {
		if err := sqliteStore.SetPipelineConfig(cfg.Pipeline); err != nil {
			return nil, fmt.Errorf("初始化流水线配置失败: %w", err)
		}
	}

	factStore := facts.NewMemoryStore()
	handler := api.NewHandler(sqliteStore, factStore, log, filepath.Join(dataDir, "uploads"))

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		facts:  factStore,
		log:    log,
	}
	s.setupRoutes(handler)
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(handler *api.Handler) {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := s.router.Group("/api")
	{
		handler.RegisterRoutes(apiGroup)
	}
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 释放资源
func (s *Server) Close() error {
	return s.store.Close()
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
