package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
)

// DatasetHandler 数据集处理器
type DatasetHandler struct {
	svc *dataset.Service
}

// NewDatasetHandler 创建数据集处理器
func NewDatasetHandler(svc *dataset.Service) *DatasetHandler {
	return &DatasetHandler{svc: svc}
}

// datasetDetail 数据集详情
type datasetDetail struct {
	*model.DatasetRecord
	Summary dataset.Summary `json:"summary"`
}

// GetDataset 获取数据集及统计
// GET /api/v1/datasets/:id
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	ds, record, err := h.svc.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, datasetDetail{DatasetRecord: record, Summary: ds.Summary()})
}

// ListDatasets 列出数据集
// GET /api/v1/datasets
func (h *DatasetHandler) ListDatasets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	datasets, total, err := h.svc.List(c.Request.Context(), page, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, datasets, total, page, pageSize)
}

// ExportDataset 以 JSONL 流导出数据集
// GET /api/v1/datasets/:id/export?format=sft|qa&passed=true|false&metadata=true
func (h *DatasetHandler) ExportDataset(c *gin.Context) {
	ds, record, err := h.svc.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	format := ds.Type()
	if f := c.Query("format"); f != "" {
		if format, err = model.ParseDatasetType(f); err != nil {
			Error(c, err)
			return
		}
	}

	if p := c.Query("passed"); p != "" {
		passed, err := strconv.ParseBool(p)
		if err != nil {
			BadRequest(c, "passed must be true or false")
			return
		}
		ds = ds.Filter(passed)
	}

	metadata, _ := strconv.ParseBool(c.DefaultQuery("metadata", "false"))

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s_%s.jsonl", record.Name, format)))
	if _, err := ds.WriteJSONL(c.Writer, format, dataset.SaveOptions{IncludeMetadata: metadata}); err != nil {
		// 响应头已发送，只能中断连接
		_ = c.Error(err)
		c.Abort()
	}
}

// DeleteDataset 删除数据集
// DELETE /api/v1/datasets/:id
func (h *DatasetHandler) DeleteDataset(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}
