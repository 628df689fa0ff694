package types

import (
	"errors"
	"fmt"
)

// UngradableFeedback 评分响应无法解析时的反馈
const UngradableFeedback = "ungradable response"

// IngestionError 文档无法读取、解析或抓取
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for %q: %v", truncate(e.Source, 80), e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// GenerationError 生成服务调用失败或返回空内容
type GenerationError struct {
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Transient {
		return fmt.Sprintf("generation failed (transient): %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// GradingError 评分响应格式错误，只在 Grader 内部使用，最终降级为不通过
type GradingError struct {
	Raw string
	Err error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("grading response malformed: %v", e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

// ConfigurationError 配置非法，在任何服务调用之前返回
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// ServiceError 外部文本服务调用失败
type ServiceError struct {
	Service   string
	Transient bool
	Err       error
}

func (e *ServiceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s service error (%s): %v", e.Service, kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsTransient 判断错误链中是否存在可重试错误
func IsTransient(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Transient
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Transient
	}
	return false
}

// IsConfiguration 判断是否为配置错误
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsIngestion 判断是否为文档读取错误
func IsIngestion(err error) bool {
	var ingErr *IngestionError
	return errors.As(err, &ingErr)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
