package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/importer"
)

// Import 上传事实工作簿并导入 (SSE 流式响应)
// POST /api/import
func (h *Handler) Import(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "无效的表单数据", err)
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		errorJSON(c, http.StatusBadRequest, "未找到上传文件", nil)
		return
	}
	uploadedFile := files[0]

	savedPath := filepath.Join(h.uploadDir, fmt.Sprintf("facts_%d_%s", time.Now().Unix(), filepath.Base(uploadedFile.Filename)))
	if err := c.SaveUploadedFile(uploadedFile, savedPath); err != nil {
		errorJSON(c, http.StatusInternalServerError, "保存文件失败", err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		errorJSON(c, http.StatusInternalServerError, "不支持流式响应", nil)
		return
	}

	coordinator := importer.NewCoordinator(h.facts, h.db)
	progressChan := coordinator.Import(importer.ImportOptions{FilePath: savedPath})

	// SSE 格式: data: {json}\n\n
	for event := range progressChan {
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// GetStatus 系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	batches, err := h.db.ListBatches()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "读取批次历史失败", err)
		return
	}

	status := gin.H{
		"factsLoaded": h.facts.StoreCount() > 0,
		"storeCount":  h.facts.StoreCount(),
		"batchCount":  len(batches),
	}
	if len(batches) > 0 {
		status["lastBatch"] = batches[0]
	}
	c.JSON(http.StatusOK, status)
}
