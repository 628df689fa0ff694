package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DatasetRecord 持久化的数据集
type DatasetRecord struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"index"`
	Type          string    `json:"type" gorm:"index"` // sft, qa
	Source        string    `json:"source"`
	Model         string    `json:"model"`
	JobID         string    `json:"job_id" gorm:"index"`
	TraceCount    int       `json:"trace_count"`
	PassedCount   int       `json:"passed_count"`
	PassingRate   float64   `json:"passing_rate"`
	MaxIterations int       `json:"max_iterations"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (DatasetRecord) TableName() string {
	return "datasets"
}

// TraceRecord 持久化的 Trace
type TraceRecord struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	DatasetID      string    `json:"dataset_id" gorm:"index;uniqueIndex:idx_dataset_trace"`
	TraceIndex     int       `json:"trace_index" gorm:"uniqueIndex:idx_dataset_trace"`
	Category       string    `json:"category" gorm:"index"`
	Focus          string    `json:"focus" gorm:"type:text"`
	Content        Content   `json:"content" gorm:"type:jsonb"`
	Passed         bool      `json:"passed" gorm:"index"`
	IterationsUsed int       `json:"iterations_used"`
	Verdict        Verdict   `json:"verdict" gorm:"type:jsonb"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (TraceRecord) TableName() string {
	return "traces"
}

// Value 实现 driver.Valuer
func (c Content) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan 实现 sql.Scanner
func (c *Content) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// Value 实现 driver.Valuer
func (v Verdict) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner
func (v *Verdict) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, v)
}

// ToTrace 转换为领域对象
func (r *TraceRecord) ToTrace(datasetType DatasetType) *Trace {
	verdict := r.Verdict
	return &Trace{
		Index:           r.TraceIndex,
		DatasetType:     datasetType,
		Category:        r.Category,
		Focus:           r.Focus,
		Content:         r.Content,
		Passed:          r.Passed,
		IterationsUsed:  r.IterationsUsed,
		GradingFeedback: &verdict,
	}
}

// NewTraceRecord 从领域对象构建记录
func NewTraceRecord(id, datasetID string, t *Trace) *TraceRecord {
	rec := &TraceRecord{
		ID:             id,
		DatasetID:      datasetID,
		TraceIndex:     t.Index,
		Category:       t.Category,
		Focus:          t.Focus,
		Content:        t.Content,
		Passed:         t.Passed,
		IterationsUsed: t.IterationsUsed,
	}
	if t.GradingFeedback != nil {
		rec.Verdict = *t.GradingFeedback
	}
	return rec
}
