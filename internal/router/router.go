// Package router HTTP 路由
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/tracesmith/internal/config"
	"github.com/ashwinyue/tracesmith/internal/handler"
	"github.com/ashwinyue/tracesmith/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, cfg *config.ServerConfig) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	if cfg.AuthEnabled {
		v1.Use(middleware.RequireAuth(cfg.JWTSecret))
	}
	{
		// Job 生成任务
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", h.Job.CreateJob)
			jobs.GET("/:id", h.Job.GetJob)
			jobs.POST("/:id/cancel", h.Job.CancelJob)
		}

		// Dataset 数据集
		datasets := v1.Group("/datasets")
		{
			datasets.GET("", h.Dataset.ListDatasets)
			datasets.GET("/:id", h.Dataset.GetDataset)
			datasets.GET("/:id/export", h.Dataset.ExportDataset)
			datasets.DELETE("/:id", h.Dataset.DeleteDataset)
		}
	}

	return r
}
