package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/prompt"
)

// SaveOptions 导出选项
type SaveOptions struct {
	// IncludeMetadata 在每行附加 metadata 对象（序号、是否通过、迭代次数、类别）
	IncludeMetadata bool
}

type recordMetadata struct {
	Index          int    `json:"index"`
	Passed         bool   `json:"passed"`
	IterationsUsed int    `json:"iterations_used"`
	Category       string `json:"category,omitempty"`
}

type sftRecord struct {
	Messages []model.Message `json:"messages"`
	Metadata *recordMetadata `json:"metadata,omitempty"`
}

type qaRecord struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Context  string          `json:"context"`
	Metadata *recordMetadata `json:"metadata,omitempty"`
}

// DefaultFilename 自动生成的输出文件名
func DefaultFilename(format model.DatasetType, now time.Time) string {
	return fmt.Sprintf("tracesmith_%s_%s.jsonl", format, now.Format("20060102_150405"))
}

// Save 写入 JSONL 文件，path 为空时自动命名，format 为空时使用数据集类型
// 返回实际写入的路径和行数
func (d *Dataset) Save(path string, format model.DatasetType, opts ...SaveOptions) (string, int, error) {
	if format == "" {
		format = d.typ
	}
	if !format.Valid() {
		return "", 0, fmt.Errorf("unsupported format: %q", format)
	}
	if path == "" {
		path = DefaultFilename(format, time.Now())
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", 0, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	written, err := d.WriteJSONL(w, format, opts...)
	if err != nil {
		return "", 0, err
	}
	if err := w.Flush(); err != nil {
		return "", 0, fmt.Errorf("failed to flush output file: %w", err)
	}
	return path, written, f.Sync()
}

// WriteJSONL 每个 trace 一行 JSON，按数据集顺序；没有内容的 trace 被跳过
// 返回写入的行数
func (d *Dataset) WriteJSONL(w io.Writer, format model.DatasetType, opts ...SaveOptions) (int, error) {
	var opt SaveOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	written := 0
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, t := range d.traces {
		if t.Content.IsEmpty() {
			log.Printf("Warning: trace %d has no content, skipped in export", t.Index)
			continue
		}

		var meta *recordMetadata
		if opt.IncludeMetadata {
			meta = &recordMetadata{Index: t.Index, Passed: t.Passed, IterationsUsed: t.IterationsUsed, Category: t.Category}
		}

		var record any
		switch format {
		case model.DatasetTypeSFT:
			record = sftRecord{Messages: toMessages(t), Metadata: meta}
		case model.DatasetTypeQA:
			qa := toQA(t)
			record = qaRecord{Question: qa.Question, Answer: qa.Answer, Context: qa.Context, Metadata: meta}
		default:
			return written, fmt.Errorf("unsupported format: %q", format)
		}

		if err := enc.Encode(record); err != nil {
			return written, fmt.Errorf("failed to encode trace %d: %w", t.Index, err)
		}
		written++
	}
	return written, nil
}

// toMessages 转为 system、user、assistant 三条消息
func toMessages(t *model.Trace) []model.Message {
	if qa := t.Content.QA; qa != nil && len(t.Content.Messages) == 0 {
		return []model.Message{
			{Role: model.RoleSystem, Content: prompt.QASystemPrompt},
			{Role: model.RoleUser, Content: qa.Question},
			{Role: model.RoleAssistant, Content: qa.Answer},
		}
	}
	return []model.Message{
		{Role: model.RoleSystem, Content: t.Content.Message(model.RoleSystem)},
		{Role: model.RoleUser, Content: t.Content.Message(model.RoleUser)},
		{Role: model.RoleAssistant, Content: t.Content.Message(model.RoleAssistant)},
	}
}

// toQA 转为问答三元组，对话样本以聚焦章节作为 context
func toQA(t *model.Trace) model.QAPair {
	if t.Content.QA != nil {
		return *t.Content.QA
	}
	context := t.Focus
	if context == "" {
		context = t.Content.Message(model.RoleSystem)
	}
	return model.QAPair{
		Question: t.Content.Message(model.RoleUser),
		Answer:   t.Content.Message(model.RoleAssistant),
		Context:  context,
	}
}
