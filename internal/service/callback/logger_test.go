package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func TestLogger_Usage(t *testing.T) {
	l := NewLogger(false)
	info := &callbacks.RunInfo{Name: "generation", Type: "OpenAI", Component: components.ComponentOfChatModel}
	ctx := context.Background()

	ctx = l.OnStart(ctx, info, &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hi")}})
	l.OnEnd(ctx, info, &model.CallbackOutput{
		Message:    schema.AssistantMessage("hello", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})

	ctx = l.OnStart(ctx, info, &model.CallbackInput{})
	l.OnError(ctx, info, errors.New("boom"))

	u := l.Usage()
	if u.Calls != 2 {
		t.Errorf("Calls = %d, want 2", u.Calls)
	}
	if u.Errors != 1 {
		t.Errorf("Errors = %d, want 1", u.Errors)
	}
	if u.TotalTokens() != 15 {
		t.Errorf("TotalTokens = %d, want 15", u.TotalTokens())
	}
}

func TestLogger_Elapsed(t *testing.T) {
	l := NewLogger(true)
	info := &callbacks.RunInfo{Name: "grading"}
	ctx := l.OnStart(context.Background(), info, nil)
	if _, ok := ctx.Value(startTimeKey{}).(interface{ IsZero() bool }); !ok {
		t.Fatal("start time not recorded in context")
	}
	if elapsed(context.Background()) != 0 {
		t.Error("elapsed without start time should be 0")
	}
}

func TestClip(t *testing.T) {
	if got := clip("abcdef", 3); got != "abc..." {
		t.Errorf("clip() = %q", got)
	}
	if got := clip("策略文档", 10); got != "策略文档" {
		t.Errorf("clip() = %q", got)
	}
}
