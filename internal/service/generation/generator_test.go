package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/prompt"
	"github.com/ashwinyue/tracesmith/internal/service/types"
	"github.com/ashwinyue/tracesmith/internal/testutil"
)

// ========== Generate 测试 ==========

func TestGenerator_Generate_SFT(t *testing.T) {
	assert := testutil.NewAssertHelper(t)
	svc := testutil.NewMockCompleter("```json\n" + testutil.SFTResponse("Yes, with a receipt.") + "\n```")
	g := NewGenerator(svc)

	content, err := g.Generate(context.Background(), &Request{
		Policy: testutil.SamplePolicy(),
		Type:   model.DatasetTypeSFT,
		Index:  0,
		Total:  5,
	})
	assert.NoError(err)
	assert.Equal(3, len(content.Messages))
	assert.Equal(model.RoleSystem, content.Messages[0].Role)
	assert.Equal(model.RoleUser, content.Messages[1].Role)
	assert.Equal(model.RoleAssistant, content.Messages[2].Role)
	assert.Equal("Yes, with a receipt.", content.Messages[2].Content)
	assert.Equal(1, svc.Calls())
}

func TestGenerator_Generate_QA(t *testing.T) {
	svc := testutil.NewMockCompleter(testutil.QAResponse("$75 per day."))
	g := NewGenerator(svc)

	content, err := g.Generate(context.Background(), &Request{
		Policy: testutil.SamplePolicy(),
		Type:   model.DatasetTypeQA,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if content.QA == nil || content.QA.Answer != "$75 per day." {
		t.Errorf("unexpected QA content: %+v", content.QA)
	}
	if !strings.Contains(svc.LastPrompt(), "question-answer pair 1 of 1") {
		t.Errorf("QA template not used")
	}
}

func TestGenerator_Generate_Errors(t *testing.T) {
	tests := []struct {
		name          string
		svc           *testutil.MockCompleter
		policy        *model.Policy
		wantTransient bool
	}{
		{
			name:          "服务限流",
			svc:           &testutil.MockCompleter{Err: &types.ServiceError{Service: "generation", Transient: true, Err: errors.New("429")}},
			policy:        testutil.SamplePolicy(),
			wantTransient: true,
		},
		{
			name:          "服务永久错误",
			svc:           &testutil.MockCompleter{Err: &types.ServiceError{Service: "generation", Err: errors.New("invalid request")}},
			policy:        testutil.SamplePolicy(),
			wantTransient: false,
		},
		{
			name:          "空内容",
			svc:           testutil.NewMockCompleter("   "),
			policy:        testutil.SamplePolicy(),
			wantTransient: true,
		},
		{
			name:          "格式错误",
			svc:           testutil.NewMockCompleter("Sorry, I can't help with that."),
			policy:        testutil.SamplePolicy(),
			wantTransient: true,
		},
		{
			name:          "空策略",
			svc:           testutil.NewMockCompleter(testutil.SFTResponse("x")),
			policy:        model.NewPolicy("", "literal"),
			wantTransient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.svc)
			_, err := g.Generate(context.Background(), &Request{Policy: tt.policy, Type: model.DatasetTypeSFT})
			var genErr *types.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Transient != tt.wantTransient {
				t.Errorf("Transient = %v, want %v", genErr.Transient, tt.wantTransient)
			}
		})
	}
}

func TestGenerator_Generate_Canceled(t *testing.T) {
	ctx := testutil.NewContextHelper(t).CanceledContext()
	g := NewGenerator(testutil.NewMockCompleter(testutil.SFTResponse("x")))
	_, err := g.Generate(ctx, &Request{Policy: testutil.SamplePolicy(), Type: model.DatasetTypeSFT})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// ========== BuildPrompt 测试 ==========

func TestBuildPrompt(t *testing.T) {
	policy := testutil.SamplePolicy()
	previous := &model.Content{Messages: []model.Message{
		{Role: model.RoleSystem, Content: "s"},
		{Role: model.RoleUser, Content: "u"},
		{Role: model.RoleAssistant, Content: "first attempt answer"},
	}}

	first := BuildPrompt(&Request{
		Policy:   policy,
		Type:     model.DatasetTypeSFT,
		Index:    2,
		Total:    10,
		Category: Category{Name: "Edge Cases", Description: "boundaries"},
		Focus:    "Meals are reimbursed up to $75 per day",
	})
	if strings.Contains(first, "ISSUES TO FIX") {
		t.Error("first attempt should not include refinement section")
	}
	for _, want := range []string{"example 3 of 10", "Edge Cases", "Meals are reimbursed up to $75 per day", policy.Text} {
		if !strings.Contains(first, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	refine := BuildPrompt(&Request{
		Policy:        policy,
		Type:          model.DatasetTypeSFT,
		PriorFeedback: "Cite section 1",
		Previous:      previous,
	})
	if !strings.Contains(refine, "ISSUES TO FIX:\nCite section 1") {
		t.Error("refinement prompt must embed the feedback")
	}
	if !strings.Contains(refine, "first attempt answer") {
		t.Error("refinement prompt must embed the previous candidate")
	}
	if !strings.Contains(refine, "General") {
		t.Error("missing category should default to General")
	}
}

// ========== ParseCandidate 测试 ==========

func TestParseCandidate(t *testing.T) {
	tests := []struct {
		name        string
		typ         model.DatasetType
		raw         string
		wantErr     bool
		wantSystem  string
		wantMessage int
	}{
		{name: "SFT 完整", typ: model.DatasetTypeSFT, raw: testutil.SFTResponse("ok"), wantMessage: 3, wantSystem: "You are a policy expert."},
		{
			name:        "SFT 缺少 system",
			typ:         model.DatasetTypeSFT,
			raw:         `{"messages":[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]}`,
			wantMessage: 3,
			wantSystem:  prompt.SFTSystemPrompt,
		},
		{
			name:        "SFT 顺序错乱",
			typ:         model.DatasetTypeSFT,
			raw:         `{"messages":[{"role":"assistant","content":"a"},{"role":"USER","content":"q"},{"role":"system","content":"s"}]}`,
			wantMessage: 3,
			wantSystem:  "s",
		},
		{name: "SFT 缺少 assistant", typ: model.DatasetTypeSFT, raw: `{"messages":[{"role":"user","content":"q"}]}`, wantErr: true},
		{name: "QA 完整", typ: model.DatasetTypeQA, raw: testutil.QAResponse("a")},
		{name: "QA 缺少 context", typ: model.DatasetTypeQA, raw: `{"question":"q","answer":"a"}`, wantErr: true},
		{name: "非 JSON", typ: model.DatasetTypeQA, raw: "no json here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := ParseCandidate(tt.typ, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCandidate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedCandidate) {
					t.Errorf("expected ErrMalformedCandidate, got %v", err)
				}
				return
			}
			if tt.typ == model.DatasetTypeSFT {
				if len(content.Messages) != tt.wantMessage {
					t.Fatalf("messages = %d, want %d", len(content.Messages), tt.wantMessage)
				}
				roles := []string{model.RoleSystem, model.RoleUser, model.RoleAssistant}
				for i, r := range roles {
					if content.Messages[i].Role != r {
						t.Errorf("message %d role = %s, want %s", i, content.Messages[i].Role, r)
					}
				}
				if content.Messages[0].Content != tt.wantSystem {
					t.Errorf("system = %q, want %q", content.Messages[0].Content, tt.wantSystem)
				}
			}
		})
	}
}
