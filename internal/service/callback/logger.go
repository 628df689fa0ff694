// Package callback 提供 Eino Callback 日志与用量统计
package callback

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type startTimeKey struct{}

// Usage 模型调用用量快照
type Usage struct {
	Calls            int64
	Errors           int64
	PromptTokens     int64
	CompletionTokens int64
}

// TotalTokens 总 token 数
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录每次模型调用的耗时、token 用量和错误
type Logger struct {
	EnableDebug bool // 是否输出输入输出内容

	calls            atomic.Int64
	errors           atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool) *Logger {
	return &Logger{EnableDebug: enableDebug}
}

// Usage 返回累计用量
func (l *Logger) Usage() Usage {
	return Usage{
		Calls:            l.calls.Load(),
		Errors:           l.errors.Load(),
		PromptTokens:     l.promptTokens.Load(),
		CompletionTokens: l.completionTokens.Load(),
	}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	l.calls.Add(1)
	if l.EnableDebug {
		log.Printf("[Eino] OnStart: name=%s type=%s component=%s input=%s",
			info.Name, info.Type, info.Component, formatInput(input))
	}
	return context.WithValue(ctx, startTimeKey{}, time.Now())
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	out := model.ConvCallbackOutput(output)
	if out != nil && out.TokenUsage != nil {
		l.promptTokens.Add(int64(out.TokenUsage.PromptTokens))
		l.completionTokens.Add(int64(out.TokenUsage.CompletionTokens))
	}
	if l.EnableDebug {
		log.Printf("[Eino] OnEnd: name=%s component=%s latency=%s output=%s",
			info.Name, info.Component, elapsed(ctx), formatOutput(out))
	}
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.errors.Add(1)
	log.Printf("[Eino] Error: name=%s type=%s component=%s latency=%s error=%v",
		info.Name, info.Type, info.Component, elapsed(ctx), err)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

func elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start).Round(time.Millisecond)
}

// formatInput 简化输入，避免日志过大
func formatInput(input callbacks.CallbackInput) string {
	in := model.ConvCallbackInput(input)
	if in == nil || len(in.Messages) == 0 {
		return ""
	}
	return clip(in.Messages[len(in.Messages)-1].Content, 200)
}

func formatOutput(out *model.CallbackOutput) string {
	if out == nil || out.Message == nil {
		return ""
	}
	return clip(out.Message.Content, 200)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
