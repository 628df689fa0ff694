// Package dataset 按序号排列的 trace 集合，提供过滤、统计与导出
package dataset

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// Dataset 数据集，创建后不可变，所有操作返回新的 Dataset
type Dataset struct {
	typ    model.DatasetType
	traces []*model.Trace
}

// New 创建数据集，按 trace 序号排序
func New(typ model.DatasetType, traces []*model.Trace) *Dataset {
	out := make([]*model.Trace, 0, len(traces))
	for _, t := range traces {
		if t != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return &Dataset{typ: typ, traces: out}
}

// Type 数据集类型
func (d *Dataset) Type() model.DatasetType {
	return d.typ
}

// Len trace 数量
func (d *Dataset) Len() int {
	return len(d.traces)
}

// Traces 返回 trace 列表的副本
func (d *Dataset) Traces() []*model.Trace {
	out := make([]*model.Trace, len(d.traces))
	copy(out, d.traces)
	return out
}

// PassedCount 通过数量
func (d *Dataset) PassedCount() int {
	n := 0
	for _, t := range d.traces {
		if t.Passed {
			n++
		}
	}
	return n
}

// PassingRate 通过率，空数据集为 0
func (d *Dataset) PassingRate() float64 {
	if len(d.traces) == 0 {
		return 0
	}
	return float64(d.PassedCount()) / float64(len(d.traces))
}

// Filter 按通过与否过滤，保持相对顺序
func (d *Dataset) Filter(passed bool) *Dataset {
	return d.FilterBy(FilterOptions{Passed: &passed})
}

// FilterOptions 过滤条件，零值字段不参与过滤
type FilterOptions struct {
	Passed    *bool
	Category  string
	MinLength int // 回答最少字符数
}

// FilterBy 组合过滤
func (d *Dataset) FilterBy(opts FilterOptions) *Dataset {
	out := make([]*model.Trace, 0, len(d.traces))
	for _, t := range d.traces {
		if opts.Passed != nil && t.Passed != *opts.Passed {
			continue
		}
		if opts.Category != "" && !strings.EqualFold(t.Category, opts.Category) {
			continue
		}
		if opts.MinLength > 0 && utf8.RuneCountInString(t.Content.ResponseText()) < opts.MinLength {
			continue
		}
		out = append(out, t)
	}
	return &Dataset{typ: d.typ, traces: out}
}

// Categories 出现过的类别，按首次出现顺序
func (d *Dataset) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range d.traces {
		if t.Category != "" && !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	return out
}

// CategoryStats 单个类别的统计
type CategoryStats struct {
	Name   string  `json:"name"`
	Total  int     `json:"total"`
	Passed int     `json:"passed"`
	Rate   float64 `json:"rate"`
}

// Summary 数据集统计
type Summary struct {
	Type          model.DatasetType `json:"type"`
	Total         int               `json:"total"`
	Passed        int               `json:"passed"`
	Failed        int               `json:"failed"`
	PassingRate   float64           `json:"passing_rate"`
	AvgIterations float64           `json:"avg_iterations"`
	Categories    []CategoryStats   `json:"categories,omitempty"`
}

// Summary 计算统计信息
func (d *Dataset) Summary() Summary {
	s := Summary{Type: d.typ, Total: d.Len(), Passed: d.PassedCount(), PassingRate: d.PassingRate()}
	s.Failed = s.Total - s.Passed

	iterations := 0
	byName := make(map[string]*CategoryStats)
	for _, t := range d.traces {
		iterations += t.IterationsUsed
		if t.Category == "" {
			continue
		}
		cs, ok := byName[t.Category]
		if !ok {
			cs = &CategoryStats{Name: t.Category}
			byName[t.Category] = cs
		}
		cs.Total++
		if t.Passed {
			cs.Passed++
		}
	}
	if s.Total > 0 {
		s.AvgIterations = float64(iterations) / float64(s.Total)
	}
	for _, name := range d.Categories() {
		cs := byName[name]
		cs.Rate = float64(cs.Passed) / float64(cs.Total)
		s.Categories = append(s.Categories, *cs)
	}
	return s
}

// String 人类可读的统计摘要
func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset (%s): %d traces\n", s.Type, s.Total)
	fmt.Fprintf(&sb, "  Passed: %d (%.1f%%)\n", s.Passed, s.PassingRate*100)
	fmt.Fprintf(&sb, "  Failed: %d\n", s.Failed)
	fmt.Fprintf(&sb, "  Avg iterations: %.2f\n", s.AvgIterations)
	if len(s.Categories) > 0 {
		sb.WriteString("  Categories:\n")
		for _, c := range s.Categories {
			fmt.Fprintf(&sb, "    %s: %d/%d passed\n", c.Name, c.Passed, c.Total)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
