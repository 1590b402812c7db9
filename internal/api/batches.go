package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/exporter"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/pipeline"
)

// 半月期格式，如 2026-08A / 2026-08B
var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])[AB]$`)

// RunBatchRequest 批次执行请求
type RunBatchRequest struct {
	Period string `json:"period" binding:"required"`
}

// RunBatch 执行一次半月批次并持久化
// POST /api/batches
func (h *Handler) RunBatch(c *gin.Context) {
	var req RunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "请求格式错误", err)
		return
	}
	if !periodPattern.MatchString(req.Period) {
		errorJSON(c, http.StatusBadRequest, fmt.Sprintf("无效的半月期: %s", req.Period), nil)
		return
	}
	if h.facts.StoreCount() == 0 {
		errorJSON(c, http.StatusConflict, "尚未导入事实数据", nil)
		return
	}

	cfg, err := h.db.GetPipelineConfig()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "读取流水线配置失败", err)
		return
	}

	p := pipeline.NewPipeline(h.facts, cfg, h.log)
	result, err := p.Run(c.Request.Context(), req.Period)
	if err != nil {
		errorJSON(c, http.StatusUnprocessableEntity, "批次执行失败", err)
		return
	}

	if err := h.db.SaveBatch(result); err != nil {
		errorJSON(c, http.StatusInternalServerError, "批次持久化失败", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"batchId":   result.BatchID,
		"period":    result.Period,
		"createdAt": result.CreatedAt,
		"itemCount": len(result.Detailed),
		"summary":   result.Summary,
	})
}

// ListBatches 批次历史
// GET /api/batches
func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.db.ListBatches()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "读取批次历史失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// loadBatch 读取批次，未找到时写 404 并返回 nil
func (h *Handler) loadBatch(c *gin.Context) *model.BatchResult {
	batchID := c.Param("id")
	result, err := h.db.GetBatch(batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			errorJSON(c, http.StatusNotFound, fmt.Sprintf("批次不存在: %s", batchID), nil)
			return nil
		}
		errorJSON(c, http.StatusInternalServerError, "读取批次失败", err)
		return nil
	}
	return result
}

// GetBatch 批次完整结果
// GET /api/batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	result := h.loadBatch(c)
	if result == nil {
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteBatch 删除批次
// DELETE /api/batches/:id
func (h *Handler) DeleteBatch(c *gin.Context) {
	if err := h.db.DeleteBatch(c.Param("id")); err != nil {
		errorJSON(c, http.StatusInternalServerError, "删除批次失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "批次已删除"})
}

// GetDetailed 明细视图
// GET /api/batches/:id/detailed
func (h *Handler) GetDetailed(c *gin.Context) {
	result := h.loadBatch(c)
	if result == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchId": result.BatchID, "detailed": result.Detailed})
}

// GetStoreRollup 门店汇总视图
// GET /api/batches/:id/store-rollup
func (h *Handler) GetStoreRollup(c *gin.Context) {
	result := h.loadBatch(c)
	if result == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchId": result.BatchID, "storeRollups": result.StoreRollups})
}

// GetClusterRollup 聚类子类汇总视图
// GET /api/batches/:id/cluster-rollup
func (h *Handler) GetClusterRollup(c *gin.Context) {
	result := h.loadBatch(c)
	if result == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchId": result.BatchID, "clusterRollups": result.ClusterRollups})
}

// ExportBatch 下载批次报表
// GET /api/batches/:id/export
func (h *Handler) ExportBatch(c *gin.Context) {
	result := h.loadBatch(c)
	if result == nil {
		return
	}

	f, err := exporter.NewExporter().Export(result)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "生成报表失败", err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("allocation_%s_%s.xlsx", result.Period, result.BatchID[:8])
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		h.log.Errorf(c.Request.Context(), "写出报表失败: %v", err)
	}
}
