// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// SamplePolicyText 测试用策略文本
const SamplePolicyText = `Expense Policy

1. All expenses over $50 require an itemized receipt.
2. Meals are reimbursed up to $75 per day while travelling.
3. Flights must be booked in economy class through the approved portal.
4. Expense reports must be submitted within 30 days of the expense.`

// SamplePolicy 测试用 Policy
func SamplePolicy() *model.Policy {
	p := model.NewPolicy(SamplePolicyText, "literal")
	p.Metadata[model.MetaTitle] = "Expense Policy"
	return p
}

// SFTResponse 生成服务返回的合法 SFT 候选
func SFTResponse(answer string) string {
	return `{"messages":[{"role":"system","content":"You are a policy expert."},` +
		`{"role":"user","content":"Can I expense a $60 dinner without a receipt?"},` +
		`{"role":"assistant","content":"` + answer + `"}]}`
}

// QAResponse 生成服务返回的合法 QA 候选
func QAResponse(answer string) string {
	return `{"question":"What is the daily meal limit?","answer":"` + answer + `",` +
		`"context":"Meals are reimbursed up to $75 per day while travelling."}`
}

// PassingGrade 满分评分响应
const PassingGrade = `{"scores":{"compliance":1,"citation":1,"reasoning":1},"policy_violations":[],"missing_citations":[],"incomplete_reasoning":[],"vague_recommendations":[],"feedback":"Correct"}`

// FailingGrade 不通过的评分响应
func FailingGrade(feedback string) string {
	return `{"scores":{"compliance":0.4,"citation":0.2,"reasoning":0.6},"policy_violations":[],"missing_citations":["Section 1"],"incomplete_reasoning":[],"vague_recommendations":[],"feedback":"` + feedback + `"}`
}

// IsGradingPrompt 根据提示词区分评分调用
func IsGradingPrompt(prompt string) bool {
	return strings.Contains(prompt, "TO GRADE")
}

// ContextHelper 提供上下文相关的测试辅助
type ContextHelper struct {
	t *testing.T
}

// NewContextHelper 创建上下文辅助器
func NewContextHelper(t *testing.T) *ContextHelper {
	return &ContextHelper{t: t}
}

// Context 返回测试用的 context.Background()
func (h *ContextHelper) Context() context.Context {
	return context.Background()
}

// CanceledContext 返回已取消的 context
func (h *ContextHelper) CanceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// TimeoutContext 返回带超时的 context，测试结束时自动取消
func (h *ContextHelper) TimeoutContext(d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	h.t.Cleanup(cancel)
	return ctx
}

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v %v", err, msgAndArgs)
	}
}

// Error 断言有错误
func (h *AssertHelper) Error(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatalf("Expected error, got nil %v", msgAndArgs)
	}
}

// ErrorContains 断言错误包含指定字符串
func (h *AssertHelper) ErrorContains(err error, substr string, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), substr) {
		h.t.Fatalf("Error %q does not contain %q %v", err.Error(), substr, msgAndArgs)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Fatalf("Expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}

// True 断言为真
func (h *AssertHelper) True(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !condition {
		h.t.Fatalf("Expected true, got false %v", msgAndArgs)
	}
}

// False 断言为假
func (h *AssertHelper) False(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if condition {
		h.t.Fatalf("Expected false, got true %v", msgAndArgs)
	}
}
