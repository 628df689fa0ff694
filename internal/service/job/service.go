package job

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
	"github.com/ashwinyue/tracesmith/internal/service/pipeline"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// Request 创建生成任务的请求
type Request struct {
	Source        string `json:"source" binding:"required"`
	Traces        int    `json:"traces"`
	DatasetType   string `json:"dataset_type"`
	MaxIterations int    `json:"max_iterations"`
	Name          string `json:"name"`
}

// Generator 执行一次生成
type Generator interface {
	GenerateFromSource(ctx context.Context, source string, traces int) (*dataset.Dataset, error)
}

// Builder 按请求构建生成器，reporter 用于回报进度
type Builder func(req *Request, reporter pipeline.Reporter) (Generator, error)

// Service 生成任务服务
type Service struct {
	manager  *Manager
	datasets *dataset.Service
	build    Builder
	model    string
}

// NewService 创建任务服务，modelName 记录在保存的数据集上
func NewService(manager *Manager, datasets *dataset.Service, build Builder, modelName string) *Service {
	return &Service{manager: manager, datasets: datasets, build: build, model: modelName}
}

// Submit 校验请求并启动后台任务
// 配置错误同步返回，不会创建任务
func (s *Service) Submit(ctx context.Context, req *Request) (*model.Job, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, &types.ConfigurationError{Field: "source", Reason: "must not be empty"}
	}
	if req.Traces < 1 {
		return nil, &types.ConfigurationError{Field: "traces", Reason: "must be at least 1"}
	}
	if req.DatasetType == "" {
		req.DatasetType = string(model.DatasetTypeSFT)
	}
	typ, err := model.ParseDatasetType(req.DatasetType)
	if err != nil {
		return nil, err
	}
	req.DatasetType = string(typ)

	job := &model.Job{
		Source:      truncateSource(req.Source),
		DatasetType: typ,
		Traces:      req.Traces,
	}

	var progress func(completed, passed int)
	gen, err := s.build(req, func(p pipeline.Progress) {
		if progress != nil {
			progress(p.Completed, p.Passed)
		}
	})
	if err != nil {
		return nil, err
	}

	return s.manager.Start(job, func(ctx context.Context, report func(completed, passed int)) (string, error) {
		progress = report
		ds, genErr := gen.GenerateFromSource(ctx, req.Source, req.Traces)
		if ds == nil || ds.Len() == 0 {
			return "", genErr
		}

		// 取消时仍保存已完成的部分
		record, err := s.datasets.Save(context.Background(), ds, &dataset.SaveRequest{
			Name:          req.Name,
			Source:        job.Source,
			Model:         s.model,
			JobID:         job.ID,
			MaxIterations: req.MaxIterations,
		})
		if err != nil {
			log.Printf("Warning: job %s failed to save dataset: %v", job.ID, err)
			if genErr == nil {
				genErr = fmt.Errorf("failed to save dataset: %w", err)
			}
			return "", genErr
		}
		log.Printf("[Job] %s saved dataset %s (%d traces, %.1f%% passed)", job.ID, record.ID, ds.Len(), ds.PassingRate()*100)
		return record.ID, genErr
	}), nil
}

// Get 查询任务
func (s *Service) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.manager.Get(ctx, id)
}

// Cancel 取消任务
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.manager.Cancel(ctx, id)
}

// truncateSource 长文本来源只保留开头
func truncateSource(source string) string {
	r := []rune(strings.TrimSpace(source))
	if len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return string(r)
}
