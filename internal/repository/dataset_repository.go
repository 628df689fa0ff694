package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// traceBatchSize 批量写入 trace 的批大小
const traceBatchSize = 200

// DatasetRepository 数据集仓库
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建数据集仓库
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create 在同一事务中创建数据集及其全部 trace
func (r *DatasetRepository) Create(dataset *model.DatasetRecord, traces []*model.TraceRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dataset).Error; err != nil {
			return err
		}
		if len(traces) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(traces, traceBatchSize).Error
	})
}

// GetByID 根据ID获取数据集
func (r *DatasetRepository) GetByID(id string) (*model.DatasetRecord, error) {
	var dataset model.DatasetRecord
	err := r.db.Where("id = ?", id).First(&dataset).Error
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// List 列出数据集
func (r *DatasetRepository) List(offset, limit int) ([]*model.DatasetRecord, error) {
	var datasets []*model.DatasetRecord
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&datasets).Error
	return datasets, err
}

// Count 数据集总数
func (r *DatasetRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.DatasetRecord{}).Count(&count).Error
	return count, err
}

// Delete 删除数据集
func (r *DatasetRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 删除关联的 trace
		if err := tx.Delete(&model.TraceRecord{}, "dataset_id = ?", id).Error; err != nil {
			return err
		}
		// 删除数据集
		return tx.Delete(&model.DatasetRecord{}, "id = ?", id).Error
	})
}

// ========== Trace 操作 ==========

// GetTraces 获取数据集的所有 trace，按序号排列
func (r *DatasetRepository) GetTraces(datasetID string) ([]*model.TraceRecord, error) {
	var traces []*model.TraceRecord
	err := r.db.Where("dataset_id = ?", datasetID).Order("trace_index ASC").Find(&traces).Error
	return traces, err
}
