package generation

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/jsonx"
	"github.com/ashwinyue/tracesmith/internal/service/prompt"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

const maxCategories = 5

// Category 场景类别
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Traces      int    `json:"traces"`
}

// Plan 场景规划
type Plan struct {
	Categories []Category `json:"categories"`
	Reasoning  string     `json:"reasoning"`
	Fallback   bool       `json:"-"`
}

// DefaultPlan 规划失败时的固定方案
func DefaultPlan(traces int) *Plan {
	return &Plan{
		Categories: distribute([]Category{
			{Name: "Happy Path", Description: "Clear cases where the policy applies directly and the request is compliant", Traces: 4},
			{Name: "Edge Cases", Description: "Ambiguous situations, exceptions and boundary conditions of the policy", Traces: 3},
			{Name: "Violations", Description: "Requests that break the policy and must be refused or corrected", Traces: 3},
		}, traces),
		Reasoning: "default plan",
		Fallback:  true,
	}
}

// Assign 把类别展开到每个 trace 序号
func (p *Plan) Assign(total int) []Category {
	out := make([]Category, 0, total)
	for _, c := range p.Categories {
		for i := 0; i < c.Traces && len(out) < total; i++ {
			out = append(out, c)
		}
	}
	for len(out) < total {
		if len(p.Categories) == 0 {
			out = append(out, Category{})
			continue
		}
		out = append(out, p.Categories[len(out)%len(p.Categories)])
	}
	return out
}

// Planner 调用生成服务规划场景类别
type Planner struct {
	service types.Completer
}

// NewPlanner 创建规划器
func NewPlanner(service types.Completer) *Planner {
	return &Planner{service: service}
}

// Plan 规划类别，服务失败或输出无法解析时退回默认方案，仅在 ctx 取消时返回错误
func (p *Planner) Plan(ctx context.Context, policy *model.Policy, traces int) (*Plan, error) {
	raw, err := p.service.Complete(ctx, prompt.Render(prompt.PlanPrompt, map[string]string{
		prompt.VarPolicy: policy.Text,
		prompt.VarTraces: strconv.Itoa(traces),
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("Warning: planning failed, using default plan: %v", err)
		return DefaultPlan(traces), nil
	}

	var plan Plan
	if err := jsonx.Decode(raw, &plan); err != nil {
		log.Printf("Warning: unparsable plan, using default plan: %v", err)
		return DefaultPlan(traces), nil
	}

	categories := make([]Category, 0, len(plan.Categories))
	for _, c := range plan.Categories {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		categories = append(categories, c)
		if len(categories) == maxCategories {
			break
		}
	}
	if len(categories) == 0 {
		log.Printf("Warning: plan has no categories, using default plan")
		return DefaultPlan(traces), nil
	}

	plan.Categories = distribute(categories, traces)
	return &plan, nil
}

// distribute 按权重把 traces 分配给各类别，总数恰好等于 traces
func distribute(categories []Category, traces int) []Category {
	out := make([]Category, len(categories))
	copy(out, categories)

	weight := 0
	for _, c := range out {
		if c.Traces > 0 {
			weight += c.Traces
		}
	}

	assigned := 0
	for i := range out {
		if weight == 0 {
			out[i].Traces = traces / len(out)
		} else if out[i].Traces > 0 {
			out[i].Traces = out[i].Traces * traces / weight
		} else {
			out[i].Traces = 0
		}
		assigned += out[i].Traces
	}

	// 余数依次补给各类别
	for i := 0; assigned < traces; i = (i + 1) % len(out) {
		out[i].Traces++
		assigned++
	}
	return out
}
