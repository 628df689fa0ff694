package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/ashwinyue/tracesmith/internal/testutil"
)

func sumTraces(cats []Category) int {
	n := 0
	for _, c := range cats {
		n += c.Traces
	}
	return n
}

func TestPlanner_Plan(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		err          error
		traces       int
		wantFallback bool
		wantCats     int
	}{
		{
			name:     "正常规划",
			response: `{"categories":[{"name":"Receipts","description":"receipt rules","traces":2},{"name":"Travel","description":"booking","traces":2}],"reasoning":"r"}`,
			traces:   8,
			wantCats: 2,
		},
		{
			name:     "数量不一致时归一化",
			response: `{"categories":[{"name":"A","traces":50},{"name":"B","traces":30},{"name":"C","traces":20}]}`,
			traces:   7,
			wantCats: 3,
		},
		{
			name:         "服务错误",
			err:          errors.New("503"),
			traces:       10,
			wantFallback: true,
			wantCats:     3,
		},
		{
			name:         "无法解析",
			response:     "here is my plan: do stuff",
			traces:       10,
			wantFallback: true,
			wantCats:     3,
		},
		{
			name:         "没有类别",
			response:     `{"categories":[{"name":"  "}]}`,
			traces:       4,
			wantFallback: true,
			wantCats:     3,
		},
		{
			name:     "类别过多截断",
			response: `{"categories":[{"name":"1"},{"name":"2"},{"name":"3"},{"name":"4"},{"name":"5"},{"name":"6"},{"name":"7"}]}`,
			traces:   10,
			wantCats: maxCategories,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &testutil.MockCompleter{Responses: []string{tt.response}, Err: tt.err}
			plan, err := NewPlanner(svc).Plan(context.Background(), testutil.SamplePolicy(), tt.traces)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if plan.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", plan.Fallback, tt.wantFallback)
			}
			if len(plan.Categories) != tt.wantCats {
				t.Errorf("categories = %d, want %d", len(plan.Categories), tt.wantCats)
			}
			if got := sumTraces(plan.Categories); got != tt.traces {
				t.Errorf("sum of traces = %d, want %d", got, tt.traces)
			}
		})
	}
}

func TestPlanner_Plan_Canceled(t *testing.T) {
	ctx := testutil.NewContextHelper(t).CanceledContext()
	_, err := NewPlanner(testutil.NewMockCompleter("{}")).Plan(ctx, testutil.SamplePolicy(), 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan(20)
	want := []int{8, 6, 6}
	for i, c := range plan.Categories {
		if c.Traces != want[i] {
			t.Errorf("%s traces = %d, want %d", c.Name, c.Traces, want[i])
		}
	}

	small := DefaultPlan(1)
	if sumTraces(small.Categories) != 1 {
		t.Errorf("DefaultPlan(1) should assign exactly 1 trace")
	}
}

func TestPlan_Assign(t *testing.T) {
	plan := &Plan{Categories: []Category{{Name: "A", Traces: 2}, {Name: "B", Traces: 1}}}
	got := plan.Assign(5)
	want := []string{"A", "A", "B", "B", "A"}
	if len(got) != len(want) {
		t.Fatalf("Assign() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("index %d = %s, want %s", i, got[i].Name, want[i])
		}
	}

	empty := (&Plan{}).Assign(2)
	if len(empty) != 2 || empty[0].Name != "" {
		t.Errorf("empty plan should yield zero categories")
	}
}
