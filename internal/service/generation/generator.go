// Package generation 生成候选样本与场景规划
package generation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/jsonx"
	"github.com/ashwinyue/tracesmith/internal/service/prompt"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// ErrMalformedCandidate 生成服务的输出不符合目标格式
var ErrMalformedCandidate = errors.New("malformed candidate")

// Request 单次生成请求
type Request struct {
	Policy        *model.Policy
	Type          model.DatasetType
	Index         int
	Total         int
	Category      Category
	Focus         string
	PriorFeedback string         // 首次生成为空
	Previous      *model.Content // 上一次候选，修正时嵌入提示词
}

// Generator 调用生成服务产出未经评分的候选
type Generator struct {
	service types.Completer
}

// NewGenerator 创建生成器
func NewGenerator(service types.Completer) *Generator {
	return &Generator{service: service}
}

// Generate 生成一条候选，不做重试
func (g *Generator) Generate(ctx context.Context, req *Request) (model.Content, error) {
	if req.Policy == nil || strings.TrimSpace(req.Policy.Text) == "" {
		return model.Content{}, &types.GenerationError{Err: errors.New("policy text is empty")}
	}

	raw, err := g.service.Complete(ctx, BuildPrompt(req))
	if err != nil {
		if ctx.Err() != nil {
			return model.Content{}, ctx.Err()
		}
		return model.Content{}, &types.GenerationError{Transient: types.IsTransient(err), Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return model.Content{}, &types.GenerationError{Transient: true, Err: errors.New("empty content")}
	}

	content, err := ParseCandidate(req.Type, raw)
	if err != nil {
		// 格式问题重新请求通常即可恢复，按可重试处理
		return model.Content{}, &types.GenerationError{Transient: true, Err: err}
	}
	return content, nil
}

// BuildPrompt 按数据集类型构建生成提示词，有反馈时附加修正说明
func BuildPrompt(req *Request) string {
	tmpl := prompt.SFTGeneratePrompt
	if req.Type == model.DatasetTypeQA {
		tmpl = prompt.QAGeneratePrompt
	}

	focus := req.Focus
	if focus == "" {
		focus = req.Policy.Text
	}
	category := req.Category
	if category.Name == "" {
		category = Category{Name: "General", Description: "Any realistic situation covered by the policy"}
	}
	total := req.Total
	if total < req.Index+1 {
		total = req.Index + 1
	}

	vars := map[string]string{
		prompt.VarPolicy:      req.Policy.Text,
		prompt.VarFocus:       focus,
		prompt.VarCategory:    category.Name,
		prompt.VarCategoryDoc: category.Description,
		prompt.VarNumber:      strconv.Itoa(req.Index + 1),
		prompt.VarTotal:       strconv.Itoa(total),
	}
	text := prompt.Render(tmpl, vars)

	if req.PriorFeedback != "" {
		previous := "(no previous output)"
		if req.Previous != nil && !req.Previous.IsEmpty() {
			previous = req.Previous.Text()
		}
		text += prompt.Render(prompt.RefineSection, map[string]string{
			prompt.VarPrevious: previous,
			prompt.VarFeedback: req.PriorFeedback,
		})
	}
	return text
}

type sftOutput struct {
	Messages []model.Message `json:"messages"`
}

// ParseCandidate 解析生成服务输出为目标格式
func ParseCandidate(datasetType model.DatasetType, raw string) (model.Content, error) {
	switch datasetType {
	case model.DatasetTypeQA:
		var qa model.QAPair
		if err := jsonx.Decode(raw, &qa); err != nil {
			return model.Content{}, fmt.Errorf("%w: %v", ErrMalformedCandidate, err)
		}
		qa.Question = strings.TrimSpace(qa.Question)
		qa.Answer = strings.TrimSpace(qa.Answer)
		qa.Context = strings.TrimSpace(qa.Context)
		if qa.Question == "" || qa.Answer == "" || qa.Context == "" {
			return model.Content{}, fmt.Errorf("%w: question, answer and context are required", ErrMalformedCandidate)
		}
		return model.Content{QA: &qa}, nil

	case model.DatasetTypeSFT:
		var out sftOutput
		if err := jsonx.Decode(raw, &out); err != nil {
			return model.Content{}, fmt.Errorf("%w: %v", ErrMalformedCandidate, err)
		}
		return normalizeMessages(out.Messages)
	}
	return model.Content{}, &types.ConfigurationError{Field: "dataset_type", Reason: fmt.Sprintf("unknown value %q", datasetType)}
}

// normalizeMessages 整理为 system、user、assistant 三条消息
func normalizeMessages(messages []model.Message) (model.Content, error) {
	byRole := make(map[string]string, 3)
	for _, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if _, seen := byRole[role]; !seen {
			byRole[role] = content
		}
	}

	if byRole[model.RoleUser] == "" || byRole[model.RoleAssistant] == "" {
		return model.Content{}, fmt.Errorf("%w: user and assistant messages are required", ErrMalformedCandidate)
	}
	system := byRole[model.RoleSystem]
	if system == "" {
		system = prompt.SFTSystemPrompt
	}

	return model.Content{Messages: []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: byRole[model.RoleUser]},
		{Role: model.RoleAssistant, Content: byRole[model.RoleAssistant]},
	}}, nil
}
