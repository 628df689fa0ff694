package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// ErrNotFound 数据集不存在
var ErrNotFound = errors.New("dataset not found")

// Store 数据集持久化
type Store interface {
	Create(dataset *model.DatasetRecord, traces []*model.TraceRecord) error
	GetByID(id string) (*model.DatasetRecord, error)
	List(offset, limit int) ([]*model.DatasetRecord, error)
	Count() (int64, error)
	GetTraces(datasetID string) ([]*model.TraceRecord, error)
	Delete(id string) error
}

// Service 数据集服务
type Service struct {
	store Store
}

// NewService 创建数据集服务
func NewService(store Store) *Service {
	return &Service{store: store}
}

// SaveRequest 保存请求
type SaveRequest struct {
	Name          string `json:"name"`
	Source        string `json:"source"`
	Model         string `json:"model"`
	JobID         string `json:"job_id"`
	MaxIterations int    `json:"max_iterations"`
}

// Save 持久化数据集及其全部 trace
func (s *Service) Save(ctx context.Context, ds *Dataset, req *SaveRequest) (*model.DatasetRecord, error) {
	record := &model.DatasetRecord{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Type:          string(ds.Type()),
		Source:        req.Source,
		Model:         req.Model,
		JobID:         req.JobID,
		TraceCount:    ds.Len(),
		PassedCount:   ds.PassedCount(),
		PassingRate:   ds.PassingRate(),
		MaxIterations: req.MaxIterations,
	}
	if record.Name == "" {
		record.Name = fmt.Sprintf("%s-%s", ds.Type(), record.ID[:8])
	}

	traces := make([]*model.TraceRecord, 0, ds.Len())
	for _, t := range ds.traces {
		traces = append(traces, model.NewTraceRecord(uuid.New().String(), record.ID, t))
	}

	if err := s.store.Create(record, traces); err != nil {
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}
	return record, nil
}

// Get 获取数据集
func (s *Service) Get(ctx context.Context, id string) (*model.DatasetRecord, error) {
	record, err := s.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return record, nil
}

// List 分页列出数据集
func (s *Service) List(ctx context.Context, page, size int) ([]*model.DatasetRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	offset := (page - 1) * size

	records, err := s.store.List(offset, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list datasets: %w", err)
	}

	total, err := s.store.Count()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count datasets: %w", err)
	}

	return records, total, nil
}

// Load 重新加载为 Dataset
func (s *Service) Load(ctx context.Context, id string) (*Dataset, *model.DatasetRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.store.GetTraces(id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load traces: %w", err)
	}

	typ := model.DatasetType(record.Type)
	traces := make([]*model.Trace, len(rows))
	for i, row := range rows {
		traces[i] = row.ToTrace(typ)
	}
	return New(typ, traces), record, nil
}

// Delete 删除数据集
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}
