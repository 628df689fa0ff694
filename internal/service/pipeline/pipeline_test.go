package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/types"
	"github.com/ashwinyue/tracesmith/internal/testutil"
)

var (
	exampleNumber = regexp.MustCompile(`(?:example|pair) (\d+) of`)
	answerKey     = regexp.MustCompile(`answer \d+`)
)

func numberOf(prompt string) int {
	m := exampleNumber.FindStringSubmatch(prompt)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// scripted 生成和评分共用一个 mock，按提示词分流
func scripted(gen func(ctx context.Context, n int) (string, error), grade func(ctx context.Context, prompt string) (string, error)) *testutil.MockCompleter {
	return testutil.NewMockCompleterFunc(func(ctx context.Context, call int, prompt string) (string, error) {
		if testutil.IsGradingPrompt(prompt) {
			return grade(ctx, prompt)
		}
		return gen(ctx, numberOf(prompt))
	})
}

func passAll(ctx context.Context, prompt string) (string, error) {
	return testutil.PassingGrade, nil
}

func TestPipeline_Generate_RestoresIndexOrder(t *testing.T) {
	const traces = 10
	svc := scripted(func(ctx context.Context, n int) (string, error) {
		// 序号越小完成越晚
		time.Sleep(time.Duration(traces-n) * 5 * time.Millisecond)
		return testutil.SFTResponse("answer " + strconv.Itoa(n)), nil
	}, passAll)

	var mu sync.Mutex
	var reported []int
	p, err := New(svc, svc, Config{DatasetType: model.DatasetTypeSFT, Workers: traces},
		WithReporter(func(pr Progress) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, pr.Trace.Index)
			if pr.Total != traces || pr.Completed != len(reported) {
				t.Errorf("unexpected progress: %+v", pr)
			}
		}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ds, err := p.Generate(context.Background(), testutil.SamplePolicy(), traces)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if ds.Len() != traces {
		t.Fatalf("Len() = %d, want %d", ds.Len(), traces)
	}
	for i, tr := range ds.Traces() {
		if tr.Index != i {
			t.Errorf("position %d has index %d", i, tr.Index)
		}
		if !tr.Passed || tr.IterationsUsed != 1 {
			t.Errorf("trace %d: passed=%v iterations=%d", i, tr.Passed, tr.IterationsUsed)
		}
		want := "answer " + strconv.Itoa(i+1)
		if got := tr.Content.Message(model.RoleAssistant); got != want {
			t.Errorf("trace %d content = %q, want %q", i, got, want)
		}
		if tr.Category == "" {
			t.Errorf("trace %d has no category", i)
		}
	}
	if ds.PassingRate() != 1 {
		t.Errorf("PassingRate() = %v, want 1", ds.PassingRate())
	}
	if len(reported) != traces {
		t.Errorf("reported %d traces, want %d", len(reported), traces)
	}
	if svc.Calls() != 2*traces {
		t.Errorf("service calls = %d, want %d", svc.Calls(), 2*traces)
	}
}

func TestPipeline_Generate_InvalidTraces(t *testing.T) {
	tests := []struct {
		name   string
		traces int
	}{
		{"零", 0},
		{"负数", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewMockCompleter(testutil.SFTResponse("a"))
			p, err := New(svc, svc, Config{})
			if err != nil {
				t.Fatal(err)
			}

			if _, err := p.Generate(context.Background(), testutil.SamplePolicy(), tt.traces); !types.IsConfiguration(err) {
				t.Errorf("Generate() error = %v, want ConfigurationError", err)
			}
			if _, err := p.GenerateFromSource(context.Background(), "http://unreachable.invalid/policy", tt.traces); !types.IsConfiguration(err) {
				t.Errorf("GenerateFromSource() error = %v, want ConfigurationError", err)
			}
			if svc.Calls() != 0 {
				t.Errorf("service calls = %d, want 0", svc.Calls())
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	svc := testutil.NewMockCompleter()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"未知数据集类型", Config{DatasetType: "csv"}},
		{"迭代次数为负", Config{MaxIterations: -1}},
		{"并发数为负", Config{Workers: -1}},
		{"重试次数为负", Config{MaxRetries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(svc, svc, tt.cfg); !types.IsConfiguration(err) {
				t.Errorf("New() error = %v, want ConfigurationError", err)
			}
		})
	}
	if svc.Calls() != 0 {
		t.Errorf("service calls = %d, want 0", svc.Calls())
	}
}

func TestNew_Defaults(t *testing.T) {
	svc := testutil.NewMockCompleter()
	p, err := New(svc, svc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	cfg := p.Config()
	if cfg.DatasetType != model.DatasetTypeSFT || cfg.Workers != DefaultWorkers {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestPipeline_Generate_RefinesFailures(t *testing.T) {
	var mu sync.Mutex
	graded := make(map[string]int)
	svc := scripted(func(ctx context.Context, n int) (string, error) {
		return testutil.QAResponse("answer " + strconv.Itoa(n)), nil
	}, func(ctx context.Context, prompt string) (string, error) {
		// 每个候选第一次评分不通过
		mu.Lock()
		defer mu.Unlock()
		key := answerKey.FindString(prompt)
		graded[key]++
		if graded[key] == 1 {
			return testutil.FailingGrade("cite the section"), nil
		}
		return testutil.PassingGrade, nil
	})

	p, err := New(svc, svc, Config{DatasetType: model.DatasetTypeQA, MaxIterations: 3})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := p.Generate(context.Background(), testutil.SamplePolicy(), 3)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, tr := range ds.Traces() {
		if !tr.Passed || tr.IterationsUsed != 2 {
			t.Errorf("trace %d: passed=%v iterations=%d", tr.Index, tr.Passed, tr.IterationsUsed)
		}
		if tr.Content.QA == nil {
			t.Errorf("trace %d has no QA content", tr.Index)
		}
	}
}

func TestPipeline_Generate_IsolatesFailures(t *testing.T) {
	svc := scripted(func(ctx context.Context, n int) (string, error) {
		if n == 2 {
			return "", &types.ServiceError{Service: "generation", Err: errors.New("invalid request")}
		}
		return testutil.SFTResponse("ok"), nil
	}, passAll)

	p, err := New(svc, svc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := p.Generate(context.Background(), testutil.SamplePolicy(), 3)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if ds.Len() != 3 || ds.PassedCount() != 2 {
		t.Fatalf("len=%d passed=%d", ds.Len(), ds.PassedCount())
	}
	failed := ds.Traces()[1]
	if failed.Passed || !failed.Content.IsEmpty() {
		t.Errorf("failed trace should be exhausted without content: %+v", failed)
	}
	if !strings.Contains(failed.FeedbackText(), "generation failed") {
		t.Errorf("feedback = %q", failed.FeedbackText())
	}
}

func TestPipeline_Generate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := scripted(func(ctx context.Context, n int) (string, error) {
		if n == 1 {
			return testutil.SFTResponse("first"), nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}, passAll)

	p, err := New(svc, svc, Config{Workers: 4}, WithReporter(func(pr Progress) {
		cancel()
	}))
	if err != nil {
		t.Fatal(err)
	}

	ds, err := p.Generate(ctx, testutil.SamplePolicy(), 4)
	if err != context.Canceled {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if ds == nil || ds.Len() != 1 || ds.Traces()[0].Index != 0 {
		t.Fatalf("expected only trace 0 to survive, got %+v", ds)
	}
}

func TestPipeline_Generate_WithPlan(t *testing.T) {
	const plan = `{"categories":[{"name":"Receipts","description":"receipt rules","traces":2},{"name":"Meals","description":"meal limits","traces":2}],"reasoning":"two themes"}`
	svc := testutil.NewMockCompleterFunc(func(ctx context.Context, call int, prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "You are planning"):
			return plan, nil
		case testutil.IsGradingPrompt(prompt):
			return testutil.PassingGrade, nil
		default:
			return testutil.SFTResponse("ok"), nil
		}
	})

	p, err := New(svc, svc, Config{Plan: true})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := p.Generate(context.Background(), testutil.SamplePolicy(), 4)
	if err != nil {
		t.Fatal(err)
	}

	got := ds.Categories()
	if len(got) != 2 || got[0] != "Receipts" || got[1] != "Meals" {
		t.Errorf("Categories() = %v", got)
	}
	if svc.Calls() != 1+2*4 {
		t.Errorf("service calls = %d, want 9", svc.Calls())
	}
}

func TestPipeline_GenerateFromSource_Literal(t *testing.T) {
	svc := scripted(func(ctx context.Context, n int) (string, error) {
		return testutil.SFTResponse("ok"), nil
	}, passAll)

	p, err := New(svc, svc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := p.GenerateFromSource(context.Background(), testutil.SamplePolicyText, 2)
	if err != nil {
		t.Fatalf("GenerateFromSource() error = %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ds.Len())
	}
}
