// Package handler HTTP 处理器
package handler

import (
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
	"github.com/ashwinyue/tracesmith/internal/service/job"
)

// Handlers 处理器集合
type Handlers struct {
	Job     *JobHandler
	Dataset *DatasetHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(jobs *job.Service, datasets *dataset.Service) *Handlers {
	return &Handlers{
		Job:     NewJobHandler(jobs),
		Dataset: NewDatasetHandler(datasets),
	}
}
