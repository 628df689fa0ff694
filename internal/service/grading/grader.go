// Package grading 调用评分服务并集中判定通过与否
package grading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/jsonx"
	"github.com/ashwinyue/tracesmith/internal/service/prompt"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// 评分维度
const (
	CriterionCompliance = "compliance"
	CriterionCitation   = "citation"
	CriterionReasoning  = "reasoning"
)

// DefaultThreshold 默认通过阈值
const DefaultThreshold = 0.7

// DefaultCriteria 必须达标的评分维度
var DefaultCriteria = []string{CriterionCompliance, CriterionCitation, CriterionReasoning}

// Grader 评分器，不持有任何 trace 状态
type Grader struct {
	service   types.Completer
	threshold float64
	criteria  []string
}

// Option Grader 选项
type Option func(*Grader)

// WithThreshold 通过阈值，取值 [0, 1]
func WithThreshold(threshold float64) Option {
	return func(g *Grader) {
		if threshold >= 0 && threshold <= 1 {
			g.threshold = threshold
		}
	}
}

// WithCriteria 必须达标的维度
func WithCriteria(criteria ...string) Option {
	return func(g *Grader) {
		if len(criteria) > 0 {
			g.criteria = criteria
		}
	}
}

// NewGrader 创建评分器
func NewGrader(service types.Completer, opts ...Option) *Grader {
	g := &Grader{
		service:   service,
		threshold: DefaultThreshold,
		criteria:  DefaultCriteria,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade 评分一条候选
// 评分响应无法解析时返回不通过的 Verdict，只有服务调用失败才返回错误
func (g *Grader) Grade(ctx context.Context, policy *model.Policy, datasetType model.DatasetType, candidate model.Content) (*model.Verdict, error) {
	tmpl := prompt.SFTGradePrompt
	if datasetType == model.DatasetTypeQA {
		tmpl = prompt.QAGradePrompt
	}

	raw, err := g.service.Complete(ctx, prompt.Render(tmpl, map[string]string{
		prompt.VarPolicy:   policy.Text,
		prompt.VarResponse: candidate.Text(),
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	verdict, err := g.Parse(raw)
	if err != nil {
		log.Printf("Warning: %v", err)
		return Ungradable(), nil
	}
	return verdict, nil
}

// Ungradable 无法评分时的自动不通过结果
func Ungradable() *model.Verdict {
	return &model.Verdict{
		Passed:   false,
		Scores:   map[string]float64{},
		Feedback: types.UngradableFeedback,
	}
}

type gradeOutput struct {
	Scores               map[string]any `json:"scores"`
	PolicyViolations     []string       `json:"policy_violations"`
	MissingCitations     []string       `json:"missing_citations"`
	IncompleteReasoning  []string       `json:"incomplete_reasoning"`
	VagueRecommendations []string       `json:"vague_recommendations"`
	Feedback             string         `json:"feedback"`
}

// Parse 解析评分响应并按阈值集中判定
func (g *Grader) Parse(raw string) (*model.Verdict, error) {
	var out gradeOutput
	if err := jsonx.Decode(raw, &out); err != nil {
		return nil, &types.GradingError{Raw: raw, Err: err}
	}

	scores := make(map[string]float64, len(out.Scores))
	for name, v := range out.Scores {
		if score, ok := toScore(v); ok {
			scores[strings.ToLower(strings.TrimSpace(name))] = score
		}
	}

	var missing, low []string
	for _, c := range g.criteria {
		score, ok := scores[c]
		switch {
		case !ok:
			missing = append(missing, c)
		case score < g.threshold:
			low = append(low, fmt.Sprintf("%s=%.2f", c, score))
		}
	}
	if len(missing) == len(g.criteria) {
		return nil, &types.GradingError{Raw: raw, Err: errors.New("no criterion scores in response")}
	}

	violations := clean(out.PolicyViolations)
	passed := len(missing) == 0 && len(low) == 0 && len(violations) == 0

	issues := make([]string, 0)
	issues = append(issues, violations...)
	issues = append(issues, clean(out.MissingCitations)...)
	issues = append(issues, clean(out.IncompleteReasoning)...)
	issues = append(issues, clean(out.VagueRecommendations)...)

	verdict := &model.Verdict{
		Passed: passed,
		Scores: scores,
		Issues: issues,
	}
	if passed {
		verdict.Feedback = strings.TrimSpace(out.Feedback)
		if verdict.Feedback == "" {
			verdict.Feedback = "Correct"
		}
		return verdict, nil
	}

	verdict.Feedback = g.composeFeedback(&out, violations, missing, low)
	return verdict, nil
}

// composeFeedback 汇总摘要、问题列表和低分维度，作为修正提示
func (g *Grader) composeFeedback(out *gradeOutput, violations, missing, low []string) string {
	var sb strings.Builder
	if s := strings.TrimSpace(out.Feedback); s != "" && !strings.EqualFold(s, "correct") {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	writeList(&sb, "Policy violations", violations)
	writeList(&sb, "Missing citations", clean(out.MissingCitations))
	writeList(&sb, "Incomplete reasoning", clean(out.IncompleteReasoning))
	writeList(&sb, "Vague recommendations", clean(out.VagueRecommendations))
	if len(low) > 0 {
		fmt.Fprintf(&sb, "Scores below threshold %.2f: %s\n", g.threshold, strings.Join(low, ", "))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		fmt.Fprintf(&sb, "Not assessed: %s\n", strings.Join(missing, ", "))
	}
	if sb.Len() == 0 {
		return "The response did not meet the grading criteria."
	}
	return strings.TrimSpace(sb.String())
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title)
	sb.WriteString(":\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
}

// toScore 数值或布尔转为 [0, 1] 分数，0-10 与 0-100 量表自动缩放
func toScore(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(strings.ToLower(val))
		switch s {
		case "true", "pass", "yes":
			return 1, true
		case "false", "fail", "no":
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	switch {
	case f < 0:
		return 0, true
	case f <= 1:
		return f, true
	case f <= 10:
		return f / 10, true
	case f <= 100:
		return f / 100, true
	}
	return 1, true
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
