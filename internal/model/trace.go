package model

import (
	"fmt"
	"strings"

	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// DatasetType 数据集类型
type DatasetType string

const (
	DatasetTypeSFT DatasetType = "sft" // system/user/assistant 对话三元组
	DatasetTypeQA  DatasetType = "qa"  // question/answer/context 三元组
)

// ParseDatasetType 解析数据集类型，大小写不敏感
func ParseDatasetType(s string) (DatasetType, error) {
	switch DatasetType(strings.ToLower(strings.TrimSpace(s))) {
	case DatasetTypeSFT:
		return DatasetTypeSFT, nil
	case DatasetTypeQA:
		return DatasetTypeQA, nil
	}
	return "", &types.ConfigurationError{Field: "dataset_type", Reason: fmt.Sprintf("unknown value %q (want sft or qa)", s)}
}

// Valid 是否为已知类型
func (t DatasetType) Valid() bool {
	return t == DatasetTypeSFT || t == DatasetTypeQA
}

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QAPair 问答三元组
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context"`
}

// Content 候选内容，SFT 使用 Messages，QA 使用 QA
type Content struct {
	Messages []Message `json:"messages,omitempty"`
	QA       *QAPair   `json:"qa,omitempty"`
}

// IsEmpty 是否没有任何内容
func (c Content) IsEmpty() bool {
	return len(c.Messages) == 0 && c.QA == nil
}

// Message 按角色取消息内容
func (c Content) Message(role string) string {
	for _, m := range c.Messages {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}

// Text 用于评分和长度过滤的纯文本形式
func (c Content) Text() string {
	var sb strings.Builder
	if c.QA != nil {
		fmt.Fprintf(&sb, "Question: %s\nAnswer: %s\nContext: %s", c.QA.Question, c.QA.Answer, c.QA.Context)
		return sb.String()
	}
	for i, m := range c.Messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", m.Role, m.Content)
	}
	return sb.String()
}

// ResponseText 回答部分的文本
func (c Content) ResponseText() string {
	if c.QA != nil {
		return c.QA.Answer
	}
	return c.Message(RoleAssistant)
}

// Verdict 评分结果
type Verdict struct {
	Passed   bool               `json:"passed"`
	Scores   map[string]float64 `json:"scores"`
	Issues   []string           `json:"issues,omitempty"`
	Feedback string             `json:"feedback"`
}

// Trace 一条生成、评分并可能经过修正的训练样本
type Trace struct {
	Index           int         `json:"index"`
	DatasetType     DatasetType `json:"dataset_type"`
	Category        string      `json:"category,omitempty"`
	Focus           string      `json:"focus,omitempty"`
	Content         Content     `json:"content"`
	Passed          bool        `json:"passed"`
	IterationsUsed  int         `json:"iterations_used"`
	GradingFeedback *Verdict    `json:"grading_feedback,omitempty"`
}

// FeedbackText 最近一次评分的反馈文本
func (t *Trace) FeedbackText() string {
	if t.GradingFeedback == nil {
		return ""
	}
	return t.GradingFeedback.Feedback
}
