package testutil

import (
	"context"
	"sync"
)

// MockCompleter 按脚本返回结果的 types.Completer，可并发调用
type MockCompleter struct {
	// Responses 依次循环返回
	Responses []string
	// Err 非空时每次调用都返回该错误
	Err error
	// Fn 非空时优先使用，call 从 1 开始计数
	Fn func(ctx context.Context, call int, prompt string) (string, error)

	mu      sync.Mutex
	calls   int
	prompts []string
}

// NewMockCompleter 创建按顺序返回 responses 的 Completer
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{Responses: responses}
}

// NewMockCompleterFunc 使用函数生成响应
func NewMockCompleterFunc(fn func(ctx context.Context, call int, prompt string) (string, error)) *MockCompleter {
	return &MockCompleter{Fn: fn}
}

// Complete 实现 types.Completer
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Fn != nil {
		return m.Fn(ctx, call, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "default response", nil
	}
	return m.Responses[(call-1)%len(m.Responses)], nil
}

// Calls 调用次数
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts 所有收到的提示词
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastPrompt 最后一次收到的提示词
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
