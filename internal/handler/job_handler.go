package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/tracesmith/internal/service/job"
)

// JobHandler 生成任务处理器
type JobHandler struct {
	svc *job.Service
}

// NewJobHandler 创建生成任务处理器
func NewJobHandler(svc *job.Service) *JobHandler {
	return &JobHandler{svc: svc}
}

// CreateJob 启动异步生成
// POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req job.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	j, err := h.svc.Submit(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, j)
}

// GetJob 查询任务状态
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	j, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, j)
}

// CancelJob 取消任务，已完成的 trace 仍会保存
// POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"id": id, "message": "cancellation requested"})
}
