package dataset

import (
	"sort"
	"sync"
	"time"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// MemoryStore 未启用数据库时使用的内存存储
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*model.DatasetRecord
	traces   map[string][]*model.TraceRecord
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets: make(map[string]*model.DatasetRecord),
		traces:   make(map[string][]*model.TraceRecord),
	}
}

// Create 保存数据集
func (s *MemoryStore) Create(dataset *model.DatasetRecord, traces []*model.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = now
	}
	dataset.UpdatedAt = now
	s.datasets[dataset.ID] = dataset
	s.traces[dataset.ID] = traces
	return nil
}

// GetByID 根据ID获取数据集
func (s *MemoryStore) GetByID(id string) (*model.DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// List 按创建时间倒序列出
func (s *MemoryStore) List(offset, limit int) ([]*model.DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.DatasetRecord, 0, len(s.datasets))
	for _, d := range s.datasets {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*model.DatasetRecord{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Count 数据集数量
func (s *MemoryStore) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.datasets)), nil
}

// GetTraces 获取数据集的全部 trace
func (s *MemoryStore) GetTraces(datasetID string) ([]*model.TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traces[datasetID], nil
}

// Delete 删除数据集
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasets, id)
	delete(s.traces, id)
	return nil
}
