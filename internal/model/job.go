package model

import "time"

// JobStatus 生成任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal 是否为终态
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// Job 异步生成任务
type Job struct {
	ID          string      `json:"id"`
	Status      JobStatus   `json:"status"`
	Source      string      `json:"source"`
	DatasetType DatasetType `json:"dataset_type"`
	Traces      int         `json:"traces"`
	Completed   int         `json:"completed"`
	Passed      int         `json:"passed"`
	DatasetID   string      `json:"dataset_id,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
