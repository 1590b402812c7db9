package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/config"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// GetPipelineConfig 当前流水线阈值
// GET /api/config/pipeline
func (h *Handler) GetPipelineConfig(c *gin.Context) {
	cfg, err := h.db.GetPipelineConfig()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "读取流水线配置失败", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdatePipelineConfig 整体替换流水线阈值
// PUT /api/config/pipeline
// 业务常量只能走配置，非法阈值在此拒绝而不是留到批次执行期
func (h *Handler) UpdatePipelineConfig(c *gin.Context) {
	cfg := model.DefaultPipelineConfig()
	if err := c.ShouldBindJSON(cfg); err != nil {
		errorJSON(c, http.StatusBadRequest, "请求格式错误", err)
		return
	}

	if err := config.ValidatePipeline(cfg); err != nil {
		errorJSON(c, http.StatusUnprocessableEntity, "流水线配置校验失败", err)
		return
	}

	if err := h.db.SetPipelineConfig(cfg); err != nil {
		errorJSON(c, http.StatusInternalServerError, "保存流水线配置失败", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
