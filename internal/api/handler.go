package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/logger"
	facts "github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/store"
)

// Handler API 处理器
type Handler struct {
	db        *store.Store
	facts     *facts.MemoryStore
	log       logger.Logger
	uploadDir string
}

// NewHandler 创建 API 处理器
func NewHandler(db *store.Store, factStore *facts.MemoryStore, log logger.Logger, uploadDir string) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		db:        db,
		facts:     factStore,
		log:       log,
		uploadDir: uploadDir,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 事实数据导入
	router.POST("/import", h.Import)

	// 批次管理
	router.POST("/batches", h.RunBatch)
	router.GET("/batches", h.ListBatches)
	router.GET("/batches/:id", h.GetBatch)
	router.DELETE("/batches/:id", h.DeleteBatch)

	// 三视图查询
	router.GET("/batches/:id/detailed", h.GetDetailed)
	router.GET("/batches/:id/store-rollup", h.GetStoreRollup)
	router.GET("/batches/:id/cluster-rollup", h.GetClusterRollup)

	// 报表下载
	router.GET("/batches/:id/export", h.ExportBatch)

	// 流水线阈值配置
	router.GET("/config/pipeline", h.GetPipelineConfig)
	router.PUT("/config/pipeline", h.UpdatePipelineConfig)
}
